package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/blackmichael/social-enrichment/internal/domain"
	"github.com/blackmichael/social-enrichment/internal/logging"
)

const (
	cursorServiceName     = "lead-events"
	defaultCursorInterval = 5 * time.Second
	defaultReconnectDelay = 5 * time.Second
)

// Enricher is the part of the enrichment service the subscriber drives.
type Enricher interface {
	Integrations() []domain.Integration
	Enrich(ctx context.Context, req domain.EnrichRequest) (*domain.SocialCache, error)
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// Subscriber connects to the CRM lead event stream and enriches leads whose
// events carry a social identifier field.
type Subscriber struct {
	url            string
	enricher       Enricher
	logger         zerolog.Logger
	cursorInterval time.Duration
	reconnectDelay time.Duration
}

// NewSubscriber creates a new lead event subscriber.
func NewSubscriber(streamURL string, enricher Enricher, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		url:            streamURL,
		enricher:       enricher,
		logger:         logger,
		cursorInterval: defaultCursorInterval,
		reconnectDelay: defaultReconnectDelay,
	}
}

// Start connects to the stream and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("lead event stream error, reconnecting")
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.reconnectDelay):
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	if cursor > 0 {
		q := u.Query()
		q.Set("cursor", strconv.FormatInt(cursor, 10))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.enricher.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load cursor, starting from live")
	}

	wsURL, err := s.buildURL(cursor)
	if err != nil {
		return err
	}
	s.logger.Info().Str("url", wsURL).Msg("connecting to lead event stream")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial lead event stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info().Msg("connected to lead event stream")

	latestCursor := cursor
	lastCursorSave := time.Now()
	var eventsReceived, leadsEnriched int64

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.saveCursor(context.WithoutCancel(ctx), latestCursor, cursor)
			return fmt.Errorf("read message: %w", err)
		}

		var event leadEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error().Err(err).Msg("failed to parse lead event")
			continue
		}

		eventsReceived++
		if event.Seq > latestCursor {
			latestCursor = event.Seq
		}

		leadsEnriched += int64(s.handleEvent(ctx, &event))

		if time.Since(lastCursorSave) >= s.cursorInterval {
			if s.saveCursor(ctx, latestCursor, cursor) {
				cursor = latestCursor
				lastCursorSave = time.Now()
				s.logger.Debug().
					Int64(logging.FieldCursor, latestCursor).
					Int64("events_received", eventsReceived).
					Int64("leads_enriched", leadsEnriched).
					Msg("lead event stream progress")
			}
		}
	}
}

// saveCursor persists latest if it moved past saved.
func (s *Subscriber) saveCursor(ctx context.Context, latest, saved int64) bool {
	if latest <= saved {
		return true
	}
	if err := s.enricher.UpdateCursor(ctx, cursorServiceName, latest); err != nil {
		s.logger.Error().Err(err).Msg("failed to save cursor")
		return false
	}
	return true
}

// handleEvent enriches the lead from every network whose identifier field
// is set on the event. Returns the number of successful enrichments.
func (s *Subscriber) handleEvent(ctx context.Context, event *leadEvent) int {
	if event.Kind != kindLeadIdentified && event.Kind != kindLeadUpdated {
		return 0
	}
	if event.Lead == nil || event.Lead.ID == "" {
		return 0
	}

	enriched := 0
	for _, integ := range s.enricher.Integrations() {
		identifier := strings.TrimSpace(event.Lead.Fields[integ.IdentifierField()])
		if identifier == "" {
			continue
		}

		ectx := logging.WithLogger(ctx, s.logger.With().Str(logging.FieldKind, event.Kind).Logger())
		ectx, l := logging.WithLead(ectx, event.Lead.ID, domain.NetworkKey(integ))

		_, err := s.enricher.Enrich(ectx, domain.EnrichRequest{
			LeadID:     event.Lead.ID,
			Network:    integ.Name(),
			Identifier: identifier,
		})
		if err != nil {
			l.Error().Err(err).Msg("failed to enrich lead from event")
			continue
		}
		enriched++
	}
	return enriched
}
