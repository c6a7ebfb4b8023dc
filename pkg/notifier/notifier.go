package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"
)

// Telegram pushes sync failures to an ops chat. Recorded meeting errors are
// not retried and surface nowhere else.
type Telegram struct {
	log    *logrus.Entry
	bot    *tele.Bot
	chatID int64
}

func NewTelegram(log *logrus.Logger, token string, chatID int64) (*Telegram, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("err creating telegram bot: %w", err)
	}
	return &Telegram{
		log:    log.WithField("component", "notifier"),
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (n *Telegram) Notify(_ context.Context, message string) error {
	if _, err := n.bot.Send(&tele.Chat{ID: n.chatID}, message); err != nil {
		return fmt.Errorf("err sending telegram notification: %w", err)
	}
	return nil
}

type DummyNotifier struct {
	log *logrus.Entry
}

func NewDummyNotifier(log *logrus.Logger) *DummyNotifier {
	return &DummyNotifier{
		log: log.WithField("component", "notifier"),
	}
}

func (n *DummyNotifier) Notify(_ context.Context, message string) error {
	n.log.Infof("ops notification: %s", message)
	return nil
}
