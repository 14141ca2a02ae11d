// Package alert raises operator alerts for incoming chat messages.
package alert

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

const maxBodyLen = 100

// Alerter raises one alert per call.
type Alerter interface {
	Alert(a domain.Alert)
}

// DesktopConfig controls desktop alerts.
type DesktopConfig struct {
	Title string
	Sound bool
	Icon  string
}

// Desktop plays a sound and shows a system notification. Both run on their
// own goroutine so the event loop never waits on the notification daemon.
type Desktop struct {
	cfg    DesktopConfig
	notify func(title, body, icon string) error
	beep   func() error
	log    zerolog.Logger
}

func NewDesktop(cfg DesktopConfig, logger zerolog.Logger) *Desktop {
	if cfg.Title == "" {
		cfg.Title = "Marketplace Support"
	}
	return &Desktop{
		cfg: cfg,
		notify: func(title, body, icon string) error {
			return beeep.Notify(title, body, icon)
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
		log: logger,
	}
}

func (d *Desktop) Alert(a domain.Alert) {
	title, body := Format(d.cfg.Title, a)
	go d.raise(title, body, a.ConversationID)
}

func (d *Desktop) raise(title, body, conversationID string) {
	if d.cfg.Sound {
		if err := d.beep(); err != nil {
			d.log.Debug().Err(err).Msg("failed to play alert sound")
		}
	}
	// best effort, headless hosts have no notification daemon
	if err := d.notify(title, body, d.cfg.Icon); err != nil {
		d.log.Warn().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to send desktop notification")
	}
}

// Format builds the notification title and body, truncating the message
// content to a readable length.
func Format(title string, a domain.Alert) (string, string) {
	sender := a.SenderName
	if sender == "" {
		sender = a.SenderID
	}
	content := a.Content
	if r := []rune(content); len(r) > maxBodyLen {
		content = string(r[:maxBodyLen-3]) + "..."
	}
	if content == "" {
		content = "sent an attachment"
	}
	return fmt.Sprintf("%s - new message", title), fmt.Sprintf("%s: %s", sender, content)
}

// Log writes alerts to the logger. It is the alerter on hosts without a
// desktop session.
type Log struct {
	log zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{log: logger}
}

func (l *Log) Alert(a domain.Alert) {
	l.log.Info().
		Str(log.FieldConversationID, a.ConversationID).
		Str(log.FieldMessageID, a.MessageID).
		Str(log.FieldUserID, a.SenderID).
		Msg("new message alert")
}

// Fanout raises every alert on each of its alerters.
type Fanout []Alerter

func (f Fanout) Alert(a domain.Alert) {
	for _, al := range f {
		al.Alert(a)
	}
}
