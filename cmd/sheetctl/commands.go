package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetview/internal/config"
	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/logging"
	"github.com/JonMunkholm/sheetview/internal/source"
	"github.com/JonMunkholm/sheetview/internal/window"
)

type options struct {
	logLevel  string
	maxSize   string
	delimiter string

	sheet    string
	page     int
	pageSize int
	frozen   int
	width    int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "sheetctl",
		Short:         "Inspect delimited and workbook files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.maxSize, "max-size", "50MB", "Input size ceiling after decompression")

	detect := &cobra.Command{
		Use:   "detect FILE",
		Short: "Report the format and field delimiter of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args[0])
		},
	}

	sheets := &cobra.Command{
		Use:   "sheets FILE",
		Short: "List the sheets of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSheets(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args[0])
		},
	}

	inspect := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Parse a file and print one page of a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args[0])
		},
	}
	inspect.Flags().StringVar(&opts.sheet, "sheet", "", "Sheet to show (default: first)")
	inspect.Flags().IntVar(&opts.page, "page", 1, "Page number")
	inspect.Flags().IntVar(&opts.pageSize, "page-size", 25, "Rows per page")
	inspect.Flags().IntVar(&opts.frozen, "frozen", 0, "Leading rows pinned on every page (0-10)")
	inspect.Flags().IntVar(&opts.width, "width", 24, "Maximum cell display width")
	inspect.Flags().StringVar(&opts.delimiter, "delimiter", "", "Field delimiter override: comma, semicolon, tab, pipe or a single character")

	root.AddCommand(detect, sheets, inspect)
	return root
}

// input is a validated local file read into memory.
type input struct {
	name   string
	format core.Format
	data   []byte
}

func loadInput(opts *options, path string, logger *slog.Logger) (*input, error) {
	maxSize, err := config.ParseByteSize(opts.maxSize)
	if err != nil {
		return nil, fmt.Errorf("invalid --max-size: %w", err)
	}

	f, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format, _, err := core.ValidateInput(f.Name(), f.Size(), maxSize, nil)
	if err != nil {
		return nil, err
	}

	last := -1
	data, err := f.ReadAll(maxSize, func(pct int) {
		if pct/25 != last/25 {
			logger.Debug("reading file", "file", f.Name(), "percent", pct)
		}
		last = pct
	})
	if errors.Is(err, source.ErrSizeLimit) {
		return nil, &core.InputValidationError{FileName: f.Name(), Reason: "exceeds " + opts.maxSize, Err: core.ErrFileTooLarge}
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &core.InputValidationError{FileName: f.Name(), Err: core.ErrEmptyFile}
	}

	logger.Info("file loaded", "file", f.Name(), "kind", format.Kind, "compressed", f.Compressed(), "bytes", len(data))
	return &input{name: f.Name(), format: format, data: data}, nil
}

func runDetect(w, errw io.Writer, opts *options, path string) error {
	logger := logging.New(errw, opts.logLevel, "text")
	in, err := loadInput(opts, path, logger)
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(w, "file:      %s\n", in.name)
	fmt.Fprintf(w, "format:    %s (%s)\n", in.format.Label, in.format.Kind)
	fmt.Fprintf(w, "size:      %s\n", core.FormatSize(int64(len(in.data))))
	if in.format.Kind != core.KindDelimited {
		return nil
	}

	delim := in.format.Delimiter
	how := "extension"
	if delim == 0 {
		text, warnings := core.DecodeText(in.name, sample(in.data))
		for _, warn := range warnings {
			logger.Warn("encoding recovered", "file", in.name, "detail", warn.Error())
		}
		delim = core.DetectDelimiter(core.NormalizeLineEndings(text))
		how = "detected"
	}
	fmt.Fprintf(w, "delimiter: %s (%s)\n", delimiterName(delim), how)
	return nil
}

// sample trims data to a prefix large enough for detection. Cutting inside
// a multibyte rune is harmless since DecodeText repairs invalid sequences.
func sample(data []byte) []byte {
	n := core.DelimiterSampleSize * 4
	if len(data) > n {
		return data[:n]
	}
	return data
}

func runSheets(w, errw io.Writer, opts *options, path string) error {
	logger := logging.New(errw, opts.logLevel, "text")
	in, err := loadInput(opts, path, logger)
	if err != nil {
		return describe(err)
	}

	if in.format.Kind != core.KindWorkbook {
		fmt.Fprintln(w, core.CSVSheetName)
		return nil
	}
	names, err := core.WorkbookSheetNames(in.name, in.data)
	if err != nil {
		return describe(err)
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

func runInspect(ctx context.Context, w, errw io.Writer, opts *options, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.New(errw, opts.logLevel, "text")

	delim, err := parseDelimiter(opts.delimiter)
	if err != nil {
		return err
	}
	if opts.frozen < 0 || opts.frozen > window.MaxFrozenRows {
		return fmt.Errorf("--frozen must be between 0 and %d", window.MaxFrozenRows)
	}

	in, err := loadInput(opts, path, logger)
	if err != nil {
		return describe(err)
	}

	runner := core.NewRunner(core.RunnerConfig{}, logger)
	term := runner.Run(ctx, core.StartMessage{
		FileName:  in.name,
		Kind:      in.format.Kind,
		Payload:   in.data,
		Delimiter: delim,
	}, func(e core.Event) {
		logger.Info("parse progress", "percent", e.Percent, "message", e.Message)
	})
	if term.Kind != core.EventComplete {
		return describe(term.Err)
	}
	for _, warn := range term.Warnings {
		logger.Warn("parse warning", "file", in.name, "detail", warn)
	}

	d, err := pickSheet(term.Sheets, opts.sheet)
	if err != nil {
		return err
	}

	var table core.Table = d
	compressed, ok := core.Compress(d)
	if ok {
		table = compressed
	}

	total := max(table.RowCount()-1, 0)
	win := window.Compute(total, window.Viewport{
		Mode:       window.ModePage,
		Page:       opts.page,
		PageSize:   opts.pageSize,
		FrozenRows: opts.frozen,
	}, window.DefaultPolicy())
	resp := core.BuildWindow(table, win)

	fmt.Fprintln(w, renderTable(resp, opts.width))
	fmt.Fprintln(w, footer(resp, term.ElapsedMs))
	if ok {
		fmt.Fprintf(w, "dictionary compressed: %d distinct strings\n", compressed.DictionarySize())
	}
	return nil
}

func pickSheet(sheets []*core.Dataset, name string) (*core.Dataset, error) {
	if len(sheets) == 0 {
		return nil, core.ErrSheetNotFound
	}
	if name == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s.SheetName == name {
			return s, nil
		}
	}
	names := make([]string, len(sheets))
	for i, s := range sheets {
		names[i] = s.SheetName
	}
	return nil, fmt.Errorf("%w: %q (have %s)", core.ErrSheetNotFound, name, strings.Join(names, ", "))
}

var delimiterNames = map[string]rune{
	"comma":     ',',
	"semicolon": ';',
	"tab":       '\t',
	"pipe":      '|',
}

func parseDelimiter(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if r, ok := delimiterNames[strings.ToLower(s)]; ok {
		return r, nil
	}
	if s == `\t` {
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 || runes[0] == '"' || runes[0] == '\n' || runes[0] == '\r' {
		return 0, fmt.Errorf("invalid --delimiter %q", s)
	}
	return runes[0], nil
}

func delimiterName(r rune) string {
	for name, v := range delimiterNames {
		if v == r {
			return name
		}
	}
	return fmt.Sprintf("%q", r)
}

// describe turns a pipeline error into the user-facing message with its code.
// Errors without a mapped message are returned as is.
func describe(err error) error {
	if err == nil {
		return errors.New("parse failed")
	}
	if !core.IsUserFacing(err) {
		return err
	}
	msg := core.MapError(err)
	if msg.Action != "" {
		return fmt.Errorf("%s [%s]: %s", msg.Message, msg.Code, msg.Action)
	}
	return fmt.Errorf("%s [%s]", msg.Message, msg.Code)
}
