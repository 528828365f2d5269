package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/starford/ariadna/internal"
	"github.com/starford/ariadna/internal/export"
	"github.com/starford/ariadna/internal/storage"
	"github.com/starford/ariadna/internal/thread"
	"github.com/starford/ariadna/internal/vcs"
	pkgconfig "github.com/starford/ariadna/pkg/config"
)

// newApp builds the command tree. File commands print to out.
func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "ariadna",
		Usage:   "Annotated walks through source trees, edited over REST or MCP",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the REST API with live change events (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP protocol on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "validate",
				Usage:     "Check thread documents against the format rules",
				ArgsUsage: "FILE...",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return validateFiles(out, cmd.Args().Slice())
				},
			},
			{
				Name:      "fmt",
				Usage:     "Rewrite a thread document in canonical form",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "Write the result back to FILE"},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return formatFile(out, cmd.Args().First(), cmd.Bool("write"))
				},
			},
			{
				Name:  "new",
				Usage: "Create an empty thread document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Thread title", Required: true},
					&cli.StringFlag{Name: "root", Usage: "Directory link paths resolve against", Value: "/"},
					&cli.StringFlag{Name: "description", Usage: "Optional description"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return newThread(out, cmd.String("title"), cmd.String("root"), cmd.String("description"), cmd.String("out"))
				},
			},
			{
				Name:      "show",
				Usage:     "Render a thread in the terminal",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "plain", Usage: "Disable colors and styling"},
					&cli.IntFlag{Name: "width", Usage: "Word wrap width", Value: export.DefaultWidth},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					styled := !cmd.Bool("plain") && isTerminal(out)
					return showFile(out, cmd.Args().First(), int(cmd.Int("width")), styled)
				},
			},
			{
				Name:      "export",
				Usage:     "Export a thread as Markdown or HTML",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "md or html", Value: "md"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file or directory (default stdout)"},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return exportFile(out, cmd.Args().First(), cmd.String("format"), cmd.String("out"))
				},
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

var errNoFile = errors.New("a FILE argument is required")

// readThread decodes a thread document from disk without validating it.
func readThread(path string) (*thread.Thread, error) {
	if path == "" {
		return nil, errNoFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := thread.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	fs, err := storage.NewFS(dir)
	if err != nil {
		return err
	}
	return fs.Write(name, data)
}

func validateFiles(out io.Writer, paths []string) error {
	if len(paths) == 0 {
		return errNoFile
	}
	failed := 0
	for _, p := range paths {
		t, err := readThread(p)
		if err == nil {
			err = thread.Validate(t)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", p, err)
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d nodes)\n", p, t.Count())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents invalid", failed, len(paths))
	}
	return nil
}

func formatFile(out io.Writer, path string, write bool) error {
	t, err := readThread(path)
	if err != nil {
		return err
	}
	if err := thread.Validate(t); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	data, err := thread.Marshal(t)
	if err != nil {
		return err
	}
	if !write {
		_, err = out.Write(data)
		return err
	}
	return writeFile(path, data)
}

func newThread(out io.Writer, title, root, description, dest string) error {
	if err := thread.ValidateTitle(title); err != nil {
		return err
	}
	t := thread.New(title)
	if root != "/" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		t.RootPath = abs
		if rev, err := vcs.Revision(abs); err == nil && rev != "" {
			t.VCSRev = &rev
		}
	}
	if description != "" {
		if err := thread.ValidateDescription(description); err != nil {
			return err
		}
		t.Description = &description
	}
	data, err := thread.Marshal(t)
	if err != nil {
		return err
	}
	if dest == "" {
		_, err = out.Write(data)
		return err
	}
	if filepath.Ext(dest) != storage.ThreadExt {
		dest += storage.ThreadExt
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%s already exists", dest)
	}
	return writeFile(dest, data)
}

func showFile(out io.Writer, path string, width int, styled bool) error {
	t, err := readThread(path)
	if err != nil {
		return err
	}
	rendered, err := export.Terminal(t, width, styled)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}

func exportFile(out io.Writer, path, format, dest string) error {
	t, err := readThread(path)
	if err != nil {
		return err
	}
	var data []byte
	switch strings.ToLower(format) {
	case "md", "markdown":
		format = "md"
		data, err = export.Markdown(t)
	case "html":
		format = "html"
		data, err = export.HTML(t)
	default:
		return fmt.Errorf("unknown format %q (want md or html)", format)
	}
	if err != nil {
		return err
	}
	if dest == "" {
		_, err = out.Write(data)
		return err
	}
	if info, statErr := os.Stat(dest); statErr == nil && info.IsDir() {
		dest = filepath.Join(dest, export.Filename(t, "."+format))
	}
	return writeFile(dest, data)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
