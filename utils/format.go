package utils

import (
	"fmt"
	"time"
)

// MessageType selects the color a CLI message is printed with.
type MessageType int

// The message types printed by the faceswap CLI.
const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
)

// Terminal color escape codes.
const (
	DefaultColor = "\x1b[0m"
	StatusColor  = "\x1b[36m"
	SuccessColor = "\x1b[32m"
	ErrorColor   = "\x1b[31m"
)

// AppTag prefixes the status lines of the CLI.
const AppTag = "⚡ FACESWAP"

var messageColors = map[MessageType]string{
	DefaultMessage: DefaultColor,
	SuccessMessage: SuccessColor,
	ErrorMessage:   ErrorColor,
	StatusMessage:  StatusColor,
}

// DecorateText wraps s in the color of the message type.
// Unknown types leave s as is.
func DecorateText(s string, msgType MessageType) string {
	color, ok := messageColors[msgType]
	if !ok {
		return s
	}
	return color + s + DefaultColor
}

// StatusLine returns the application tag followed by msg and, when set,
// by a mark colored after the message type.
func StatusLine(msg, mark string, markType MessageType) string {
	line := DecorateText(AppTag, StatusMessage) + " " + DecorateText(msg, DefaultMessage)
	if mark != "" {
		line += " " + DecorateText(mark, markType)
	}
	return line
}

// ErrorReport formats the error the CLI exits with.
func ErrorReport(err error) string {
	return fmt.Sprintf("%s %s",
		DecorateText("\nError swapping faces:", ErrorMessage),
		DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), DefaultMessage),
	)
}

// BatchSummary reports the outcome of swapping a face onto a directory of images.
func BatchSummary(swapped, skipped, failed int) string {
	return fmt.Sprintf("%s swapped, %s without face, %s failed",
		DecorateText(fmt.Sprint(swapped), SuccessMessage),
		DecorateText(fmt.Sprint(skipped), StatusMessage),
		DecorateText(fmt.Sprint(failed), ErrorMessage),
	)
}

// FormatTime formats a duration as days, hours, minutes and seconds,
// omitting the leading units which are zero.
func FormatTime(d time.Duration) string {
	var (
		days  = int64(d / (24 * time.Hour))
		hours = int64(d/time.Hour) % 24
		mins  = int64(d/time.Minute) % 60
		secs  = (d % time.Minute).Seconds()
	)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %.2fs", mins, secs)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm %.2fs", hours, mins, secs)
	}
	return fmt.Sprintf("%dd %dh %dm %.2fs", days, hours, mins, secs)
}
