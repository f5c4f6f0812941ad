// Package ui provides terminal UI components for the devolo-plc CLI.
//
// Components follow a "run once and exit" pattern: they render output and
// return, without an interactive TUI.
//
//   - Header: command banner showing the operation and its target device
//   - Result: success, warning and failure boxes with ordered details
//   - RenderTable: device lists and powerline data rates
//   - RunWithSpinner: a Bubble Tea spinner shown while connecting
//   - Confirm: typed confirmation before destructive operations
//
// Styled output is only used when stdout is a terminal. Logging is controlled
// separately via DEVOLO_PLC_LOG_LEVEL so that zap output does not interleave
// with the boxes by default.
package ui
