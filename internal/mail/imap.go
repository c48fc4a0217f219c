package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jonathan/application-tracker/internal/types"
)

// IMAPConfig configures an IMAPSource
type IMAPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	UseTLS   bool
	Folders  []string
	OAuth    *OAuthConfig
	Timeout  time.Duration
}

// IMAPSource reads messages from an IMAP server without marking them as seen
type IMAPSource struct {
	cfg    IMAPConfig
	logger *zap.Logger
	client *client.Client
	tokens oauth2.TokenSource
}

// NewIMAPSource creates an unconnected IMAP source
func NewIMAPSource(cfg IMAPConfig, logger *zap.Logger) *IMAPSource {
	if len(cfg.Folders) == 0 {
		cfg.Folders = []string{"INBOX"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IMAPSource{cfg: cfg, logger: logger}
}

// Connect dials the server and logs in with OAuth when configured, else with the password
func (s *IMAPSource) Connect(ctx context.Context) error {
	if s.cfg.Addr == "" {
		return &FetchError{Message: "no IMAP server configured"}
	}

	var (
		c   *client.Client
		err error
	)
	if s.cfg.UseTLS {
		c, err = client.DialTLS(s.cfg.Addr, &tls.Config{})
	} else {
		c, err = client.Dial(s.cfg.Addr)
	}
	if err != nil {
		return &FetchError{Message: fmt.Sprintf("failed to connect to %s", s.cfg.Addr), Cause: err}
	}
	if s.cfg.Timeout > 0 {
		c.Timeout = s.cfg.Timeout
	}

	if s.cfg.OAuth.Enabled() {
		if s.tokens == nil {
			s.tokens = s.cfg.OAuth.TokenSource(ctx)
		}
		auth, err := saslClient(s.tokens, s.cfg.Username)
		if err == nil {
			err = c.Authenticate(auth)
		}
		if err != nil {
			_ = c.Logout()
			return &FetchError{Message: "OAuth login failed", Cause: err}
		}
	} else if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return &FetchError{Message: "login failed", Cause: err}
	}

	s.client = c
	s.logger.Info("connected to mailbox", zap.String("addr", s.cfg.Addr), zap.String("user", s.cfg.Username))
	return nil
}

// Fetch searches every configured folder and returns the newest MaxMessages matches, ordered oldest first.
// A folder that fails is logged and skipped.
func (s *IMAPSource) Fetch(ctx context.Context, q FetchQuery) ([]types.Message, error) {
	if s.client == nil {
		return nil, &FetchError{Message: "not connected"}
	}

	var all []types.Message
	var lastErr error
	failed := 0
	for _, folder := range s.cfg.Folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgs, err := s.fetchFolder(folder, q)
		if err != nil {
			s.logger.Warn("failed to fetch folder", zap.String("folder", folder), zap.Error(err))
			lastErr = err
			failed++
			continue
		}
		all = append(all, msgs...)
	}
	if failed == len(s.cfg.Folders) && lastErr != nil {
		return nil, &FetchError{Message: "every folder failed", Cause: lastErr}
	}

	return newest(Dedupe(all), q.MaxMessages), nil
}

func (s *IMAPSource) fetchFolder(folder string, q FetchQuery) ([]types.Message, error) {
	mbox, err := s.client.Select(folder, true)
	if err != nil {
		return nil, err
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	uids, err := s.client.UidSearch(SearchCriteria(q))
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}
	// UIDs ascend with arrival, so the tail is the newest
	if q.MaxMessages > 0 && len(uids) > q.MaxMessages {
		uids = uids[len(uids)-q.MaxMessages:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var out []types.Message
	for msg := range messages {
		m, err := convert(msg, section, folder, mbox.UidValidity)
		if err != nil {
			s.logger.Warn("skipping undecodable message",
				zap.String("folder", folder), zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		out = append(out, m)
	}

	if err := <-done; err != nil {
		return nil, err
	}
	return out, nil
}

// Disconnect logs out; safe to call when not connected
func (s *IMAPSource) Disconnect() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Logout()
	s.client = nil
	return err
}

// SearchCriteria translates a query into IMAP SEARCH criteria
func SearchCriteria(q FetchQuery) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	switch q.Mode {
	case ModeUnread:
		criteria.WithoutFlags = []string{imap.SeenFlag}
	case ModeAll:
	default:
		criteria.Since = q.Since()
	}

	if kc := keywordCriteria(q.Keywords); kc != nil {
		criteria.Text = kc.Text
		criteria.Or = kc.Or
	}
	return criteria
}

// keywordCriteria ORs TEXT searches together: OR TEXT a (OR TEXT b TEXT c)
func keywordCriteria(keywords []string) *imap.SearchCriteria {
	var kws []string
	for _, k := range keywords {
		if k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return nil
	}

	c := imap.NewSearchCriteria()
	if len(kws) == 1 {
		c.Text = []string{kws[0]}
		return c
	}
	first := imap.NewSearchCriteria()
	first.Text = []string{kws[0]}
	c.Or = [][2]*imap.SearchCriteria{{first, keywordCriteria(kws[1:])}}
	return c
}

func convert(msg *imap.Message, section *imap.BodySectionName, folder string, uidValidity uint32) (types.Message, error) {
	var m types.Message
	if body := msg.GetBody(section); body != nil {
		parsed, err := ParseMessage(body)
		if err != nil {
			return types.Message{}, err
		}
		m = parsed
	}

	if env := msg.Envelope; env != nil {
		if id := NormalizeMessageID(env.MessageId); id != "" {
			m.ID = id
		}
		if m.Subject == "" {
			m.Subject = env.Subject
		}
		if m.Sender == "" && len(env.From) > 0 {
			m.Sender = formatAddress(env.From[0])
		}
		if m.Date.IsZero() {
			m.Date = env.Date
		}
	}
	if m.Date.IsZero() {
		m.Date = msg.InternalDate
	}
	if m.ID == "" {
		m.ID = fmt.Sprintf("%s:%d:%d", folder, uidValidity, msg.Uid)
	}
	m.Folder = folder
	return m, nil
}

func formatAddress(a *imap.Address) string {
	if a.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", a.PersonalName, a.Address())
	}
	return a.Address()
}
