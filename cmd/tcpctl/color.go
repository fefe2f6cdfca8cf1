package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/agrinman/transport"
)

// eventStyle pairs a foreground color with a boldness flag, rather than
// exposing one color.SprintFunc per color name: the thing tcpctl actually
// wants to colorize is a transport.Event, and different event kinds need
// more than a plain fg color to stay readable next to each other in a
// terminal (an error should stand out by more than hue alone).
type eventStyle struct {
	fg   color.Attribute
	bold bool
}

func (s eventStyle) paint(msg string) string {
	attrs := []color.Attribute{s.fg}
	if s.bold {
		attrs = append(attrs, color.Bold)
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.SprintFunc()(msg)
}

var (
	styleOpened  = eventStyle{fg: color.FgHiCyan}
	styleClosed  = eventStyle{fg: color.FgHiCyan}
	styleNotice  = eventStyle{fg: color.FgHiGreen}
	styleWarning = eventStyle{fg: color.FgHiYellow}
	styleError   = eventStyle{fg: color.FgHiRed, bold: true}
)

// styleFor picks the style tcpctl prints event e with, so call sites don't
// each have to remember which color a given transport.Event kind gets.
func styleFor(e transport.Event) eventStyle {
	switch e.(type) {
	case transport.ConnectionOpened:
		return styleOpened
	case transport.ConnectionClosed, transport.EndPointClosed:
		return styleClosed
	case transport.ErrorEvent:
		return styleError
	default:
		return styleNotice
	}
}

func colorizeEvent(e transport.Event, format string, args ...interface{}) string {
	return styleFor(e).paint(fmt.Sprintf(format, args...))
}

func notice(format string, args ...interface{}) string {
	return styleNotice.paint(fmt.Sprintf(format, args...))
}

func warn(format string, args ...interface{}) string {
	return styleWarning.paint(fmt.Sprintf(format, args...))
}

func fail(format string, args ...interface{}) string {
	return styleError.paint(fmt.Sprintf(format, args...))
}
