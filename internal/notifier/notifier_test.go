package notifier_test

import (
	"bytes"
	"errors"
	"github.com/clambin/adax-monitor/internal/notifier"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"log/slog"
	"testing"
)

func TestNotifiers_Notify(t *testing.T) {
	s := newSlackSender(t)
	s.On("AuthTest").Return(&slack.AuthTestResponse{UserID: "bot"}, nil).Once()
	s.On("GetConversations", mock.Anything).Return([]slack.Channel{
		makeChannel("C1", "general", true, false),
		makeChannel("C2", "random", false, false),
		makeChannel("C3", "old", true, true),
	}, "", nil).Twice()
	s.On("PostMessage", "C1", mock.Anything).Return("", "", nil).Twice()

	var out bytes.Buffer
	n := notifier.Notifiers{
		notifier.SLogNotifier{Logger: slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{ReplaceAttr: noTime}))},
		&notifier.SlackNotifier{SlackSender: s, Logger: slog.New(slog.DiscardHandler)},
	}

	n.Notify(notifier.Message{Level: notifier.Info, Title: "Living room: target temperature set to 21.5ºC", Text: "was 22.0ºC"})
	n.Notify(notifier.Message{Level: notifier.Warning, Title: "Bedroom: no longer reported"})

	assert.Equal(t, `level=INFO msg="Living room: target temperature set to 21.5ºC" text="was 22.0ºC"
level=WARN msg="Bedroom: no longer reported" text=""
`, out.String())
}

func TestSlackNotifier_Channel(t *testing.T) {
	s := newSlackSender(t)
	s.On("AuthTest").Return(&slack.AuthTestResponse{UserID: "bot"}, nil).Once()
	s.On("GetConversations", &slack.GetConversationsParameters{Limit: 100}).Return([]slack.Channel{
		makeChannel("C1", "general", true, false),
	}, "next", nil).Once()
	s.On("GetConversations", &slack.GetConversationsParameters{Cursor: "next", Limit: 100}).Return([]slack.Channel{
		makeChannel("C4", "heating", true, false),
	}, "", nil).Once()
	s.On("PostMessage", "C4", mock.Anything).Return("", "", nil).Once()

	n := notifier.SlackNotifier{SlackSender: s, Channel: "heating", Logger: slog.New(slog.DiscardHandler)}
	n.Notify(notifier.Message{Level: notifier.Info, Title: "foo"})
}

func TestSlackNotifier_Failure(t *testing.T) {
	s := newSlackSender(t)
	s.On("AuthTest").Return(nil, errors.New("invalid_auth")).Once()

	n := notifier.SlackNotifier{SlackSender: s, Logger: slog.New(slog.DiscardHandler)}
	n.Notify(notifier.Message{Level: notifier.Info, Title: "foo"})
	s.AssertNotCalled(t, "PostMessage", mock.Anything, mock.Anything)
}

var _ notifier.SlackSender = &slackSender{}

type slackSender struct {
	mock.Mock
}

func newSlackSender(t *testing.T) *slackSender {
	var s slackSender
	s.Test(t)
	t.Cleanup(func() { s.AssertExpectations(t) })
	return &s
}

func (s *slackSender) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	args := s.Called(channelID, options)
	return args.String(0), args.String(1), args.Error(2)
}

func (s *slackSender) GetConversations(params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	args := s.Called(params)
	return args.Get(0).([]slack.Channel), args.String(1), args.Error(2)
}

func (s *slackSender) AuthTest() (*slack.AuthTestResponse, error) {
	args := s.Called()
	resp, _ := args.Get(0).(*slack.AuthTestResponse)
	return resp, args.Error(1)
}

func makeChannel(id, name string, member, archived bool) slack.Channel {
	var c slack.Channel
	c.ID = id
	c.Name = name
	c.IsMember = member
	c.IsArchived = archived
	return c
}

func noTime(_ []string, a slog.Attr) slog.Attr {
	// Remove time from the output for predictable test output.
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
