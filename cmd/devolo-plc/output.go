package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/2Fake/devolo-plc-api/internal/ui"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
)

const (
	formatDetailed = "detailed"
	formatJSON     = "json"
)

// printer writes command results in the selected output format.
type printer struct {
	out    io.Writer
	format string
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, format: outputFormat}
}

// result prints a success box, or payload as JSON.
func (p *printer) result(title string, details []ui.Detail, payload any) error {
	if p.format == formatJSON {
		return p.json(payload)
	}
	_, err := fmt.Fprintln(p.out, ui.NewSuccessResult(title, details...).Render())
	return err
}

// warning prints a warning box, or payload as JSON.
func (p *printer) warning(title string, details []ui.Detail, payload any) error {
	if p.format == formatJSON {
		return p.json(payload)
	}
	_, err := fmt.Fprintln(p.out, ui.NewWarningResult(title, details...).Render())
	return err
}

// table prints a titled table, or payload as JSON.
func (p *printer) table(title string, headers []string, rows [][]string, payload any) error {
	if p.format == formatJSON {
		return p.json(payload)
	}
	if _, err := fmt.Fprintln(p.out, ui.HeaderTitleStyle.Render(title)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(p.out, ui.RenderTable(headers, rows))
	return err
}

func (p *printer) json(payload any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// printError reports a failed command.
func printError(out io.Writer, format string, err error) {
	if format == formatJSON {
		_ = (&printer{out: out, format: format}).json(map[string]string{
			"error":   apierrors.GetShortErrorMessage(err),
			"details": err.Error(),
		})
		return
	}
	result := ui.NewFailureResult(apierrors.GetShortErrorMessage(err), err, apierrors.GetTroubleshootingHint(err))
	_, _ = fmt.Fprintln(out, result.Render())
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// parseOnOff parses the optional on/off argument of a command.
func parseOnOff(arg string) (bool, error) {
	switch arg {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q (use on or off)", arg)
}
