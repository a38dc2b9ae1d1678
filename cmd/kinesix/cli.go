package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"github.com/logrusorgru/aurora"
)

const (
	ViewDevices  = "devices"
	ViewGestures = "gestures"
	ViewLogs     = "logs"
)

func GetCli() (*gocui.Gui, error) {
	g, err := gocui.NewGui(gocui.Output256, true)
	if err != nil {
		return nil, err
	}

	g.SetManagerFunc(Layout)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return nil, err
	}
	if err := g.SetKeybinding("", 'q', gocui.ModNone, quit); err != nil {
		return nil, err
	}

	return g, nil
}

func Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	split := maxX * 2 / 3

	if v, err := g.SetView(ViewDevices, 0, 0, split-1, 7, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Devices]"
		v.Wrap = false
		v.Frame = true
	}

	if v, err := g.SetView(ViewGestures, split, 0, maxX-1, 7, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Gestures]"
		v.Wrap = false
		v.Frame = true
	}

	if v, err := g.SetView(ViewLogs, 0, 7, maxX-1, maxY-1, gocui.TOP); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[Logs]"
		v.Autoscroll = false
		v.Wrap = false
		v.Frame = true
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

type TimeNanosecond time.Time

func (j *TimeNanosecond) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*j = TimeNanosecond(time.Unix(0, v))
	return nil
}

// Entry is a decoded logger message.
type Entry struct {
	Ts     TimeNanosecond `json:"ts"`
	Caller string         `json:"caller"`
	Msg    string         `json:"msg"`
	Level  int            `json:"level"`

	DeviceName string `json:"device_name"`
	DevicePath string `json:"device_path"`
	Command    string `json:"command"`
}

func unpack(data []byte) (Entry, error) {
	var v Entry
	err := json.Unmarshal(data, &v)
	return v, err
}

func gray(v uint8) aurora.Color {
	if v > 23 {
		v = 23
	}
	return aurora.Color(232+v) << 16
}

// color takes r, g, b within 0-5
func color(r, g, b uint8) aurora.Color {
	return aurora.Color(16+36*r+6*g+b) << 16
}

func levelColor(level int) aurora.Color {
	switch level {
	case logger.ErrorLvl:
		return color(5, 1, 1)
	case logger.WarningLvl:
		return color(5, 5, 1)
	case logger.InfoLvl:
		return gray(18)
	case logger.GestureLvl:
		return color(1, 5, 2)
	case logger.EventLvl:
		return gray(13)
	default:
		return gray(9)
	}
}

// colorForString gives the same string the same color every time.
func colorForString(au aurora.Aurora, s string) aurora.Value {
	h := fnv.New32a()
	h.Write([]byte(s))
	sum := h.Sum32()

	r, g, b := uint8(sum)%6, uint8(sum>>8)%6, uint8(sum>>16)%6

	// dark colors are unreadable on most terminals
	if r+g+b < 3 {
		r, g, b = r+1, g+1, b+1
	}
	return au.Index(16+36*r+6*g+b, s)
}

func terminator(r rune) bool {
	return r >= 0x40 && r <= 0x7e
}

// rawStringLen returns the printable length of s, escape sequences excluded.
// An unterminated sequence counts as printable.
func rawStringLen(s string) int {
	runes := []rune(s)
	var n, pending int
	var sequence bool

	for i := 0; i < len(runes); i++ {
		if sequence {
			pending++
			if terminator(runes[i]) {
				sequence = false
				pending = 0
			}
			continue
		}
		if runes[i] == '\033' && i+1 < len(runes) && runes[i+1] == '[' {
			sequence = true
			pending = 2
			i++
			continue
		}
		n++
	}
	return n + pending
}

func entryFields(msg Entry, au aurora.Aurora, logLevel int) string {
	var fields []string
	if msg.DeviceName != "" {
		fields = append(fields, fmt.Sprintf("[dev=%s]", colorForString(au, msg.DeviceName)))
	}
	if msg.DevicePath != "" {
		fields = append(fields, fmt.Sprintf("[path=%s]", colorForString(au, msg.DevicePath)))
	}
	if msg.Command != "" {
		fields = append(fields, fmt.Sprintf("[cmd=%s]", colorForString(au, msg.Command)))
	}
	if logLevel >= logger.DebugLvl && msg.Caller != "" {
		file, line, _ := strings.Cut(msg.Caller, ":")
		fields = append(fields, fmt.Sprintf("(%s:%s)", colorForString(au, file), line))
	}
	return strings.Join(fields, " ")
}

// prepareString renders an entry, an empty string means it is filtered out by logLevel.
// width -1 disables fitting the line into the view.
func prepareString(msg Entry, au aurora.Aurora, width, logLevel int) string {
	if msg.Level > logLevel {
		return ""
	}

	timestamp := fmt.Sprintf(
		"[%s]",
		au.Reset(time.Time(msg.Ts).Format("15:04:05.000")).Colorize(color(1, 1, 5)),
	)
	fields := entryFields(msg, au, logLevel)
	msgColor := levelColor(msg.Level)

	if width < 0 {
		return strings.TrimRight(fmt.Sprintf("%s %s %s", timestamp, au.Reset(msg.Msg).Colorize(msgColor), fields), " ")
	}

	timeLen := rawStringLen(timestamp)
	fieldsLen := rawStringLen(fields)
	text := []rune(msg.Msg)

	free := width - (timeLen + 1 + len(text) + 1 + fieldsLen)
	if free < 0 {
		if width-(timeLen+1+fieldsLen+1)-3 < 20 {
			fields = au.Gray(12, "(fields hidden)").String()
			fieldsLen = rawStringLen(fields)
			free = width - (timeLen + 1 + len(text) + 1 + fieldsLen)
		}
		if free < 0 {
			limit := width - (timeLen + 1 + fieldsLen + 1) - 3
			if limit < 0 {
				limit = 0
			}
			text = append(text[:limit:limit], '.', '.', '.')
			free = 0
		}
	}

	if fields == "" {
		return fmt.Sprintf("%s %s", timestamp, au.Reset(string(text)).Colorize(msgColor))
	}
	return fmt.Sprintf("%s %s%s %s", timestamp, au.Reset(string(text)).Colorize(msgColor), strings.Repeat(" ", free), fields)
}

type Feeder struct {
	view     *gocui.View
	au       aurora.Aurora
	logLevel int
}

func NewFeeder(gui *gocui.Gui, viewName string, logLevel int, au aurora.Aurora) (Feeder, error) {
	v, err := gui.View(viewName)
	if err != nil {
		return Feeder{}, err
	}
	return Feeder{view: v, logLevel: logLevel, au: au}, nil
}

func (f *Feeder) Write(data []byte) {
	msg, err := unpack(data)
	if err != nil {
		f.view.Write(data)
		f.view.Write([]byte{'\n'})
		return
	}

	x, _ := f.view.Size()
	s := prepareString(msg, f.au, x, f.logLevel)
	if s != "" {
		f.view.Write([]byte(s))
		f.view.Write([]byte{'\n'})
	}
}
