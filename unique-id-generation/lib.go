package uniqueidgeneration

import (
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"maelstrom-node/protocol"
)

// UniqueIdServer hands out ULIDs. Ids never repeat within the process: ids
// drawn in the same millisecond increment the random component, and the
// timestamp never moves backwards even when the clock does.
type UniqueIdServer struct {
	n       protocol.Replier
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
	lastMs  uint64
}

type Option func(*uniqueIdConfig)

type uniqueIdConfig struct {
	now     func() time.Time
	entropy io.Reader
}

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *uniqueIdConfig) {
		c.now = now
	}
}

// WithEntropy replaces crypto/rand as the randomness source.
func WithEntropy(r io.Reader) Option {
	return func(c *uniqueIdConfig) {
		c.entropy = r
	}
}

func NewUniqueIdServer(n protocol.Replier, opts ...Option) *UniqueIdServer {
	cfg := uniqueIdConfig{now: time.Now, entropy: rand.Reader}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &UniqueIdServer{
		n:       n,
		now:     cfg.now,
		entropy: ulid.Monotonic(cfg.entropy, 0),
	}
}

func (s *UniqueIdServer) HandleMessage(m protocol.Message) error {
	receivedMessage, err := protocol.As[protocol.GenerateMessage](m)
	if err != nil {
		return err
	}

	uniqueId, err := s.GenerateUniqueId()
	if err != nil {
		return err
	}

	return s.n.Reply(m, receivedMessage.Reply(uniqueId.String()))
}

func (s *UniqueIdServer) GenerateUniqueId() (ulid.ULID, error) {
	ms := ulid.Timestamp(s.now())
	if ms < s.lastMs {
		ms = s.lastMs
	}

	for {
		id, err := ulid.New(ms, s.entropy)
		if errors.Is(err, ulid.ErrMonotonicOverflow) {
			ms++
			continue
		}
		if err != nil {
			return ulid.ULID{}, err
		}

		s.lastMs = ms
		return id, nil
	}
}
