package simulated_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/srg/picoflash/internal/codec"
	"github.com/srg/picoflash/internal/device"
	"github.com/srg/picoflash/internal/device/simulated"
	"github.com/srg/picoflash/internal/session"
	"github.com/srg/picoflash/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type SimulatedTestSuite struct {
	suite.Suite

	helper    *testutils.TestHelper
	cfg       simulated.Config
	transport *simulated.Transport
	ctx       context.Context
}

func (s *SimulatedTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.cfg = simulated.DefaultConfig()
	s.cfg.Interval = 5 * time.Millisecond
	s.transport = simulated.New(s.cfg, s.helper.Logger)
	s.ctx = s.helper.Context(5 * time.Second)
}

func (s *SimulatedTestSuite) TestDiscover() {
	seen := make(chan device.Peripheral, 16)
	s.Require().NoError(s.transport.Discover(s.ctx, func(p device.Peripheral, connected bool) {
		s.Assert().False(connected)
		select {
		case seen <- p:
		default:
		}
	}))
	defer func() { s.Require().NoError(s.transport.StopDiscover()) }()

	select {
	case p := <-seen:
		s.Assert().Equal(s.cfg.ID, p.ID)
		s.Assert().Equal("Ney Tack", p.Name)
		s.Assert().True(p.Connectable)
	case <-time.After(time.Second):
		s.FailNow("no advertisement received")
	}

	s.Assert().Error(s.transport.Discover(s.ctx, func(device.Peripheral, bool) {}), "a second concurrent discovery MUST be rejected")
}

func (s *SimulatedTestSuite) TestConnectUnknownPeripheral() {
	_, err := s.transport.Connect(s.ctx, "00:00:00:00:00:00")
	s.Assert().Error(err)
}

func (s *SimulatedTestSuite) TestOperationsRequireLiveHandle() {
	h, err := s.transport.Connect(s.ctx, s.cfg.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.transport.Cancel(s.ctx, h))

	_, err = s.transport.Enumerate(s.ctx, h)
	s.Assert().ErrorIs(err, device.ErrNotConnected)
	s.Assert().ErrorIs(s.transport.Write(s.ctx, h, s.cfg.Service, s.cfg.TX, codec.ToggleCommand), device.ErrNotConnected)
	s.Assert().ErrorIs(s.transport.Cancel(s.ctx, h), device.ErrNotConnected)
}

func (s *SimulatedTestSuite) TestWriteToggles() {
	// GOAL: Verify any write flips the active flag, like the firmware does
	//
	// TEST SCENARIO: Write 0x2A → active; write 0x00 → inactive

	h, err := s.transport.Connect(s.ctx, s.cfg.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.transport.Write(s.ctx, h, s.cfg.Service, s.cfg.TX, codec.ToggleCommand))
	s.Assert().True(s.transport.State().Active)

	s.Require().NoError(s.transport.Write(s.ctx, h, s.cfg.Service, s.cfg.TX, []byte{0x00}))
	s.Assert().False(s.transport.State().Active)

	err = s.transport.Write(s.ctx, h, s.cfg.Service, "6e400009-b5a3-f393-e0a9-e50e24dcca9e", codec.ToggleCommand)
	var nf *device.NotFoundError
	s.Assert().ErrorAs(err, &nf)
}

func (s *SimulatedTestSuite) TestSessionEndToEnd() {
	// GOAL: Verify the session drives the simulated firmware through the full lifecycle
	//
	// TEST SCENARIO: connect → stream → decoded frames arrive → toggle → frames report active → disconnect

	sess := session.New(s.transport, s.helper.Logger)

	var (
		mu     sync.Mutex
		states []codec.TelemetryState
	)
	sess.OnStateChanged(func(st codec.TelemetryState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})
	last := func() (codec.TelemetryState, bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(states) == 0 {
			return codec.TelemetryState{}, false
		}
		return states[len(states)-1], true
	}

	s.Require().NoError(sess.Connect(s.ctx, s.cfg.ID))
	s.Require().NoError(sess.StartStreaming(s.ctx))

	s.Require().Eventually(func() bool {
		st, ok := last()
		return ok && !st.Active
	}, time.Second, 5*time.Millisecond)

	st, _ := last()
	s.Assert().Equal([]uint16{1000, 1000, 250, 250}, st.Pattern)
	s.Assert().Equal(uint8(0), st.FlashIndex)

	s.Require().NoError(sess.Send(s.ctx, codec.ToggleCommand))
	s.Require().Eventually(func() bool {
		st, ok := last()
		return ok && st.Active
	}, time.Second, 5*time.Millisecond)

	s.Require().NoError(sess.Disconnect(s.ctx))
	s.Assert().Equal(session.Idle, sess.Snapshot().Kind)
	s.Assert().ErrorIs(sess.Send(s.ctx, codec.ToggleCommand), session.ErrNotConnected)
}

func TestSimulatedTestSuite(t *testing.T) {
	suite.Run(t, new(SimulatedTestSuite))
}
