package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/FACorreiaa/billing-intake/internal/domain/billing/gateway"
	"github.com/FACorreiaa/billing-intake/internal/domain/common"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/assembler"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/export"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/extract"
	"github.com/FACorreiaa/billing-intake/internal/domain/import/parser"
)

const maxInputBytes = 10 << 20

func newApp() *cli.App {
	return &cli.App{
		Name:    "billingctl",
		Usage:   "Turn pasted or uploaded pricing data into billing line items",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "ocr-endpoint",
				Usage:   "OCR service used for image inputs",
				EnvVars: []string{"OCR_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "ocr-api-key",
				Usage:   "OCR service API key",
				EnvVars: []string{"OCR_API_KEY"},
			},
		},
		Commands: []*cli.Command{
			sniffCommand(),
			parseCommand(),
			exportCommand(),
			catalogCommand(),
		},
	}
}

func sniffCommand() *cli.Command {
	return &cli.Command{
		Name:      "sniff",
		Usage:     "Report how a document would be read",
		ArgsUsage: "FILE|-",
		Action: func(c *cli.Context) error {
			text, err := readInput(c)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, parser.New(parser.Options{}).Sniff(text))
		},
	}
}

func parseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "currency",
			Usage: "Currency applied to every item (default: named in the document, else " + common.DefaultCurrency + ")",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Source tag stored on every item",
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a document and print line items as JSON",
		ArgsUsage: "FILE|-",
		Flags:     parseFlags(),
		Action: func(c *cli.Context) error {
			res, err := parseInput(c)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, res)
		},
	}
}

func exportCommand() *cli.Command {
	flags := append(parseFlags(),
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   string(export.FormatXLSX),
			Usage:   "Export format (xlsx, csv)",
		},
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "Output path",
			Required: true,
		},
	)

	return &cli.Command{
		Name:      "export",
		Usage:     "Parse a document and write the items as XLSX or CSV",
		ArgsUsage: "FILE|-",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			format, err := export.ParseFormat(c.String("format"))
			if err != nil {
				return err
			}

			res, err := parseInput(c)
			if err != nil {
				return err
			}

			out := c.String("out")
			base := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
			file, err := export.Render(res.Items, format, base)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, file.Content, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			fmt.Fprintf(c.App.Writer, "wrote %d items to %s\n", len(res.Items), out)
			return nil
		},
	}
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "List products, prices and meters in the Stripe account",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: gateway.DefaultListLimit,
				Usage: "Maximum objects per list",
			},
			&cli.StringFlag{
				Name:    "stripe-key",
				Usage:   "Stripe secret key",
				EnvVars: []string{"STRIPE_SECRET_KEY"},
			},
			&cli.StringFlag{
				Name:    "stripe-api-url",
				Usage:   "Override the Stripe API URL, e.g. for stripe-mock",
				EnvVars: []string{"STRIPE_API_URL"},
			},
		},
		Action: func(c *cli.Context) error {
			gw, err := gateway.NewStripeGateway(gateway.Config{
				SecretKey: c.String("stripe-key"),
				APIURL:    c.String("stripe-api-url"),
				Timeout:   30 * time.Second,
			}, newLogger(c))
			if err != nil {
				return err
			}

			ctx := c.Context
			limit := c.Int("limit")

			products, err := gw.ListProducts(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list products: %w", err)
			}
			prices, err := gw.ListPrices(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list prices: %w", err)
			}
			meters, err := gw.ListMeters(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list meters: %w", err)
			}

			return writeJSON(c.App.Writer, map[string]any{
				"products": products,
				"prices":   prices,
				"meters":   meters,
			})
		},
	}
}

// parseInput reads the input and parses it with the command's flags.
func parseInput(c *cli.Context) (*parser.Result, error) {
	text, err := readInput(c)
	if err != nil {
		return nil, err
	}

	p := parser.New(parser.Options{
		Defaults: assembler.Defaults{Source: c.String("source")},
	})
	if c.IsSet("currency") {
		currency := strings.ToUpper(c.String("currency"))
		if len(currency) != 3 {
			return nil, fmt.Errorf("invalid currency %q", c.String("currency"))
		}
		p = p.WithCurrency(currency)
	}

	res, err := p.Parse(text)
	if errors.Is(err, common.ErrNoItemsFound) {
		return nil, fmt.Errorf("%w in %d lines", err, res.LinesTotal)
	}
	return res, err
}

// readInput returns the text of the FILE argument. Stdin is read as text;
// files go through extraction so spreadsheets, PDFs and HTML work too.
func readInput(c *cli.Context) (string, error) {
	name := c.Args().First()
	if name == "" {
		return "", errors.New("missing FILE argument (use - for stdin)")
	}

	if name == "-" {
		data, err := io.ReadAll(io.LimitReader(c.App.Reader, maxInputBytes+1))
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if len(data) > maxInputBytes {
			return "", extract.ErrFileTooLarge
		}
		return string(data), nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}

	var ocr extract.Recognizer
	if endpoint := c.String("ocr-endpoint"); endpoint != "" {
		ocr = extract.NewOCRClient(endpoint, c.String("ocr-api-key"), newLogger(c))
	}

	doc, err := extract.New(ocr, maxInputBytes).FromFile(contextOf(c), filepath.Base(name), data)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}

func newLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
