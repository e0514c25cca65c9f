package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/genialityco/wa-multi-session-backend/internal/authstore"
	"github.com/genialityco/wa-multi-session-backend/internal/driver"
	"github.com/genialityco/wa-multi-session-backend/internal/event"
	"github.com/genialityco/wa-multi-session-backend/internal/logging"
	"github.com/genialityco/wa-multi-session-backend/internal/media"
)

var (
	// ErrSessionNotFound is returned by operations on an unknown clientId.
	ErrSessionNotFound = errors.New("session not found")
)

// teardownTimeout bounds driver destruction and credential purge during
// teardown. Teardown always completes registry removal and the cleaned
// broadcast even when these steps fail.
const teardownTimeout = 15 * time.Second

// Service is the session registry plus lifecycle controller. All registry
// mutations happen under one mutex, so two concurrent creates for the same
// clientId can never produce two driver instances.
type Service struct {
	factory driver.Factory
	store   authstore.Store
	bus     *event.Bus
	purge   authstore.PurgePolicy

	mu       sync.Mutex
	sessions map[string]*Session

	wg sync.WaitGroup
}

// NewService creates a session service.
func NewService(factory driver.Factory, store authstore.Store, bus *event.Bus, purge authstore.PurgePolicy) *Service {
	if purge == "" {
		purge = authstore.PurgeAuto
	}
	return &Service{
		factory:  factory,
		store:    store,
		bus:      bus,
		purge:    purge,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for a clientId, constructing and
// initializing a new one when absent. The second return reports whether a
// session was created. Creation never blocks on authentication: the new
// session is returned immediately in state pending while the driver
// handshake runs in the background.
func (s *Service) GetOrCreate(clientID string) (*Session, bool) {
	s.mu.Lock()
	if sess, ok := s.sessions[clientID]; ok {
		s.mu.Unlock()
		return sess, false
	}

	sess := &Session{
		ClientID:  clientID,
		CreatedAt: time.Now(),
		drv:       s.factory(clientID, s.store),
		status:    StatusPending,
	}
	s.sessions[clientID] = sess
	s.mu.Unlock()

	log := logging.Session(clientID)
	log.Info().Msg("session created")

	s.wg.Add(2)
	go s.watch(sess)
	go s.initialize(sess)

	return sess, true
}

// Get is a pure lookup with no side effects.
func (s *Service) Get(clientID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[clientID]
	return sess, ok
}

// List returns a snapshot of the registry membership with each session's
// most recently observed status.
func (s *Service) List() []Summary {
	s.mu.Lock()
	summaries := make([]Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		summaries = append(summaries, Summary{
			ClientID: sess.ClientID,
			Status:   sess.Status(),
		})
	}
	s.mu.Unlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ClientID < summaries[j].ClientID
	})
	return summaries
}

// Send delivers a message through the session's driver. chatID must already
// be normalized; exactly one of text/img may be empty.
func (s *Service) Send(ctx context.Context, clientID, chatID, text string, img *media.Image) (string, error) {
	sess, ok := s.Get(clientID)
	if !ok {
		return "", ErrSessionNotFound
	}

	if img != nil {
		return sess.drv.SendImage(ctx, chatID, img, text)
	}
	return sess.drv.SendText(ctx, chatID, text)
}

// Logout triggers teardown with reason logout_manual and returns without
// waiting for it to complete. A logout for an unknown clientId still purges
// persisted credentials per policy and notifies subscribers, matching the
// behavior of tearing down a session whose driver already died.
func (s *Service) Logout(clientID string) {
	sess, ok := s.Get(clientID)
	if !ok {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.finishTeardown(clientID, ReasonLogout)
		}()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.teardown(sess, ReasonLogout)
	}()
}

// initialize runs the driver handshake. Initialization errors are fatal to
// this session only: they route through the same teardown path as a
// disconnect, with reason init_error.
func (s *Service) initialize(sess *Session) {
	defer s.wg.Done()

	if err := sess.drv.Initialize(context.Background()); err != nil {
		log := logging.Session(sess.ClientID)
		log.Error().Err(err).Msg("driver initialize failed")
		sess.setStatus(StatusDisconnected)
		s.teardown(sess, ReasonInitError)
	}
}

// watch is the per-session controller loop: it consumes driver events in
// emission order and applies the state machine. Terminal events invoke
// teardown inline so the status broadcast always precedes session_cleaned.
func (s *Service) watch(sess *Session) {
	defer s.wg.Done()
	log := logging.Session(sess.ClientID)

	for ev := range sess.drv.Events() {
		switch ev.Type {
		case driver.EventQR:
			log.Debug().Msg("qr emitted")
			s.bus.PublishSync(event.Event{
				Type: event.SessionQR,
				Data: event.QRData{ClientID: sess.ClientID, QR: ev.QR},
			})

		case driver.EventAuthenticated:
			log.Info().Msg("authenticated")
			sess.setStatus(StatusAuthenticated)
			s.broadcastStatus(sess.ClientID, StatusAuthenticated, "", "")

		case driver.EventReady:
			log.Info().Msg("session ready")
			sess.setStatus(StatusReady)
			sess.setInfo(sess.drv.Info())
			s.broadcastStatus(sess.ClientID, StatusReady, "", "")

		case driver.EventAuthFailure:
			log.Warn().Str("error", ev.Error).Msg("authentication failed")
			sess.setStatus(StatusAuthFailure)
			s.broadcastStatus(sess.ClientID, StatusAuthFailure, ev.Error, "")
			s.teardown(sess, ReasonAuthFailure)

		case driver.EventDisconnected:
			log.Info().Str("reason", ev.Reason).Msg("disconnected")
			sess.setStatus(StatusDisconnected)
			s.broadcastStatus(sess.ClientID, StatusDisconnected, "", ev.Reason)
			s.teardown(sess, ReasonDisconnected)
		}
	}
}

// broadcastStatus publishes one session.status event.
func (s *Service) broadcastStatus(clientID string, status Status, errMsg, reason string) {
	s.bus.PublishSync(event.Event{
		Type: event.SessionStatus,
		Data: event.StatusData{
			ClientID: clientID,
			Status:   string(status),
			Error:    errMsg,
			Reason:   reason,
		},
	})
}

// teardown removes the registry entry, destroys the session's driver,
// applies the credential purge policy, and notifies subscribers. Idempotent:
// concurrent triggers (terminal event plus manual logout) run it once. The
// registry entry goes first so lookups and sends cannot reach a driver that
// is being destroyed, and List never reports a terminal status. Failures in
// the destroy and purge steps are logged and swallowed; the cleaned
// broadcast always happens.
func (s *Service) teardown(sess *Session, reason string) {
	sess.teardownOnce.Do(func() {
		log := logging.Session(sess.ClientID)

		s.mu.Lock()
		delete(s.sessions, sess.ClientID)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		if err := sess.drv.Destroy(ctx); err != nil {
			log.Error().Err(err).Msg("driver destroy failed")
		}

		sess.setStatus(StatusCleaned)
		s.finishTeardown(sess.ClientID, reason)
	})
}

// finishTeardown purges credentials per policy and emits session_cleaned.
// Shared with the no-live-session logout path.
func (s *Service) finishTeardown(clientID, reason string) {
	log := logging.Session(clientID)

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if s.purge.ShouldPurge(s.store) {
		if err := s.store.Purge(ctx, clientID); err != nil {
			log.Error().Err(err).Msg("credential purge failed")
		} else {
			log.Info().Msg("session credentials purged")
		}
	}

	log.Info().Str("reason", reason).Msg("session cleaned")
	s.bus.PublishSync(event.Event{
		Type: event.SessionCleaned,
		Data: event.CleanedData{
			ClientID: clientID,
			Status:   string(StatusCleaned),
			Reason:   reason,
		},
	})
}

// Shutdown destroys every live driver and waits for controller goroutines to
// drain. Sessions are not broadcast as cleaned: the process is exiting and
// subscribers are going away with it, while persisted credentials stay
// untouched so sessions restore on the next start.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range live {
		if err := sess.drv.Destroy(ctx); err != nil {
			log := logging.Session(sess.ClientID)
			log.Error().Err(err).Msg("driver destroy failed")
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
