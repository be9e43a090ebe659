package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/wedgego/internal/bus"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/datawedge"
	"github.com/skobkin/wedgego/internal/intentlink"
)

const TestScanSuccess = "TestScan Success"

var (
	ErrTestScanFailure = errors.New("TestScan Failure")
	ErrNotActive       = errors.New("scan session is not active")
)

// Config describes the profile pushed on activation and session toggles.
type Config struct {
	Profile datawedge.Profile
	// StopOnDeactivate ends continuous scanning when the session is deactivated.
	StopOnDeactivate bool
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Active        bool
	Continuous    bool
	SinglePending bool
	MultiPending  bool
	Scanner       connectors.ScannerStatus
	Version       connectors.VersionInfo
}

// Session correlates scan intents with pending requests and the continuous
// event stream. It is safe for concurrent use.
type Session struct {
	logger   *slog.Logger
	bus      bus.MessageBus
	link     intentlink.Broadcaster
	commands *datawedge.Commands
	cfg      Config
	now      func() time.Time

	lifecycleMu  sync.Mutex
	registration intentlink.Registration

	mu         sync.Mutex
	active     bool
	continuous bool
	closed     bool
	single     *Request
	multi      *Request
	subs       map[*Subscription]struct{}
	status     connectors.ScannerStatus
	version    connectors.VersionInfo
}

func New(logger *slog.Logger, b bus.MessageBus, link intentlink.Broadcaster, cfg Config) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		logger:   logger,
		bus:      b,
		link:     link,
		commands: datawedge.NewCommands(cfg.Profile),
		cfg:      cfg,
		now:      time.Now,
		subs:     make(map[*Subscription]struct{}),
	}
}

// ScanOnce waits for the next scan. A pending single request is superseded.
func (s *Session) ScanOnce() *Request {
	return s.replace(KindSingle, false)
}

// StartScanning turns continuous scanning on. The returned request resolves
// with the first scan; every scan is also published as BarcodeScanned.
func (s *Session) StartScanning() *Request {
	return s.replace(KindMulti, true)
}

// StopScanning turns continuous scanning off and rejects a pending multi request.
func (s *Session) StopScanning() {
	s.mu.Lock()
	prev := s.multi
	s.multi = nil
	changed := s.continuous
	s.continuous = false
	state := s.sessionStateLocked()
	s.mu.Unlock()

	if prev != nil {
		prev.reject(ErrScanningStopped)
	}
	if changed {
		s.logger.Info("continuous scanning stopped")
		s.publish(connectors.TopicSession, state)
	}
}

func (s *Session) replace(kind Kind, startContinuous bool) *Request {
	req := newRequest(kind, s.releaseRequest)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		req.reject(ErrSessionClosed)
		return req
	}
	var prev *Request
	if kind == KindSingle {
		prev, s.single = s.single, req
	} else {
		prev, s.multi = s.multi, req
	}
	changed := startContinuous && !s.continuous
	if startContinuous {
		s.continuous = true
	}
	state := s.sessionStateLocked()
	s.mu.Unlock()

	if prev != nil && prev.reject(ErrSuperseded) {
		s.logger.Debug("pending request superseded", "kind", kind)
	}
	if changed {
		s.logger.Info("continuous scanning started")
		s.publish(connectors.TopicSession, state)
	}

	return req
}

func (s *Session) releaseRequest(req *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.single == req:
		s.single = nil
	case s.multi == req:
		s.multi = nil
	}
}

// Subscribe returns a BarcodeScanned listener. On a closed session the
// returned subscription's channel is already closed.
func (s *Session) Subscribe() *Subscription {
	sub := &Subscription{
		ch:      make(chan connectors.BarcodeScanned, subscriptionBuffer),
		release: s.releaseSubscription,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(sub.ch)
		return sub
	}
	s.subs[sub] = struct{}{}

	return sub
}

func (s *Session) releaseSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.ch)
}

// HandleIntent routes an inbound intent. Scan intents settle pending requests,
// result and notification intents update status. Everything else is dropped.
func (s *Session) HandleIntent(in datawedge.Intent) {
	switch in.Action {
	case datawedge.ActionResult:
		s.handleResult(in)
		return
	case datawedge.ActionNotification:
		s.handleNotification(in)
		return
	}

	scan, ok := datawedge.ParseScan(in, s.cfg.Profile.ScanAction)
	if !ok {
		s.logger.Debug("ignoring intent", "action", in.Action)
		return
	}
	s.handleScan(scan)
}

func (s *Session) handleScan(scan datawedge.Scan) {
	event := connectors.BarcodeScanned{Barcode: scan.Data}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	single := s.single
	s.single = nil
	continuous := s.continuous
	var multi *Request
	if continuous {
		multi = s.multi
		s.multi = nil
		for sub := range s.subs {
			if !sub.deliver(event) {
				s.logger.Warn("barcode subscriber is lagging, dropped oldest event")
			}
		}
	}
	s.mu.Unlock()

	if single == nil && !continuous {
		s.logger.Debug("scan dropped: no pending request")
		return
	}

	if single != nil {
		single.resolve(scan.Data)
	}
	mode := connectors.ScanModeSingle
	if continuous {
		mode = connectors.ScanModeContinuous
		if multi != nil {
			multi.resolve(scan.Data)
		}
		s.publish(connectors.TopicBarcode, event)
	}
	s.logger.Debug("scan accepted", "symbology", scan.LabelType, "mode", mode)

	s.publish(connectors.TopicScan, connectors.ScanRecord{
		Barcode:   scan.Data,
		Symbology: scan.LabelType,
		Source:    scan.Source,
		Mode:      mode,
		At:        s.now(),
	})
}

func (s *Session) handleResult(in datawedge.Intent) {
	if raw, ok := datawedge.ParseVersionInfo(in); ok {
		s.handleVersion(raw)
		return
	}

	res, ok := datawedge.ParseCommandResult(in)
	if !ok {
		s.logger.Debug("ignoring result intent without RESULT", "keys", in.Keys())
		return
	}
	if !res.Failed() {
		s.logger.Debug("command accepted", "command", res.Command, "id", res.Identifier)
		return
	}

	s.logger.Warn("command failed", "command", res.Command, "id", res.Identifier, "info", map[string]any(res.Info))
	s.publish(connectors.TopicCommandResult, connectors.CommandResult{
		Command:    res.Command,
		Identifier: res.Identifier,
		Result:     res.Result,
		Info:       res.Info.Clone(),
		At:         s.now(),
	})
}

func (s *Session) handleVersion(raw string) {
	info := connectors.VersionInfo{
		DataWedge:   raw,
		Supported:   datawedge.VersionSupported(raw),
		MinRequired: datawedge.MinimumVersion,
	}

	s.mu.Lock()
	s.version = info
	s.mu.Unlock()

	if info.Supported {
		s.logger.Info("scanner subsystem version", "version", raw)
	} else {
		s.logger.Warn("scanner subsystem version is below minimum", "version", raw, "minimum", datawedge.MinimumVersion)
	}
	s.publish(connectors.TopicVersion, info)
}

func (s *Session) handleNotification(in datawedge.Intent) {
	st, ok := datawedge.ParseScannerStatus(in)
	if !ok {
		s.logger.Debug("ignoring notification", "keys", in.Keys())
		return
	}

	status := connectors.ScannerStatus{Status: st.Status, ProfileName: st.ProfileName, At: s.now()}
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	s.logger.Info("scanner status", "status", st.Status, "profile", st.ProfileName)
	s.publish(connectors.TopicScannerStatus, status)
}

// Activate registers the intent receiver and pushes the profile configuration.
// On any failure the receiver is released again. Activating an active session
// is a no-op.
func (s *Session) Activate(ctx context.Context) (err error) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.isClosed() {
		return ErrSessionClosed
	}
	if s.registration != nil {
		return nil
	}

	filter := intentlink.NewFilter(s.cfg.Profile.ScanAction, datawedge.ActionResult, datawedge.ActionNotification)
	reg, err := s.link.RegisterReceiver(filter, s.HandleIntent)
	if err != nil {
		return fmt.Errorf("register intent receiver: %w", err)
	}
	defer func() {
		if err != nil {
			reg.Unregister()
		}
	}()

	if err := s.sendSequence(ctx, s.commands.ActivationSequence()); err != nil {
		s.logger.Warn("activation failed", "error", err)
		return err
	}

	s.registration = reg
	s.setActive(true)
	s.logger.Info("scan session activated", "profile", s.cfg.Profile.Name)

	return nil
}

// Reconfigure pushes the profile configuration again without touching the
// receiver, for example after the link to the device was re-established.
func (s *Session) Reconfigure(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.registration == nil {
		return ErrNotActive
	}

	return s.sendSequence(ctx, s.commands.ActivationSequence())
}

// Deactivate releases the receiver and sends a best-effort unregistration.
// The session is released even when the unregistration fails.
func (s *Session) Deactivate(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	return s.deactivateLocked(ctx)
}

func (s *Session) deactivateLocked(ctx context.Context) error {
	if s.registration == nil {
		return nil
	}

	s.registration.Unregister()
	s.registration = nil

	var err error
	if sendErr := s.send(ctx, s.commands.UnregisterNotification()); sendErr != nil {
		s.logger.Warn("unregister notification failed", "error", sendErr)
		err = fmt.Errorf("unregister notifications: %w", sendErr)
	}
	if s.cfg.StopOnDeactivate {
		s.StopScanning()
	}
	s.setActive(false)
	s.logger.Info("scan session deactivated")

	return err
}

// Close deactivates the session, rejects pending requests with
// ErrSessionClosed and closes every subscription.
func (s *Session) Close(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	err := s.deactivateLocked(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	s.closed = true
	pending := []*Request{s.single, s.multi}
	s.single, s.multi = nil, nil
	s.continuous = false
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.ch)
	}
	s.mu.Unlock()

	for _, req := range pending {
		if req != nil {
			req.reject(ErrSessionClosed)
		}
	}

	return err
}

// TestScan validates the bridge wiring without touching the device.
func (s *Session) TestScan(success bool) (string, error) {
	if success {
		return TestScanSuccess, nil
	}

	return "", ErrTestScanFailure
}

func (s *Session) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Active:        s.active,
		Continuous:    s.continuous,
		SinglePending: s.single != nil,
		MultiPending:  s.multi != nil,
		Scanner:       s.status,
		Version:       s.version,
	}
}

func (s *Session) sendSequence(ctx context.Context, intents []datawedge.Intent) error {
	for _, in := range intents {
		if err := s.send(ctx, in); err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) send(ctx context.Context, in datawedge.Intent) error {
	if err := s.link.SendBroadcast(ctx, in); err != nil {
		return fmt.Errorf("send %s: %w", commandName(in), err)
	}

	return nil
}

func (s *Session) setActive(active bool) {
	s.mu.Lock()
	s.active = active
	state := s.sessionStateLocked()
	s.mu.Unlock()

	s.publish(connectors.TopicSession, state)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *Session) sessionStateLocked() connectors.SessionState {
	return connectors.SessionState{Active: s.active, Continuous: s.continuous}
}

func (s *Session) publish(topic string, msg any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(topic, msg)
}

// commandName picks the API extra of a command intent for error messages.
func commandName(in datawedge.Intent) string {
	for _, key := range in.Keys() {
		if key != datawedge.ExtraSendResult && key != datawedge.ExtraCommandIdentifier {
			return key
		}
	}

	return in.Action
}
