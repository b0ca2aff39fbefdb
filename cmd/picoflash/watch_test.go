package main

import (
	"strings"
	"testing"

	"github.com/srg/picoflash/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type WatchTestSuite struct {
	CommandTestSuite
}

func (s *WatchTestSuite) TestWatchPrintsDistinctStates() {
	// GOAL: Verify watch prints the first state and suppresses identical frames
	//
	// TEST SCENARIO: idle simulated flasher streams the same frame every 20ms for 300ms → one state line

	out, err := s.ExecuteSimulated("watch", SimulatedDeviceAddress, "--duration", waitTimeout.String())
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(out, `
Connected to 5A:17:00:00:00:01
OFF index=0 pattern=[1000ms 1000ms 250ms 250ms]`)
}

func (s *WatchTestSuite) TestWatchRemember() {
	// GOAL: Verify --remember stores the address for later commands

	_, err := s.ExecuteSimulated("watch", SimulatedDeviceAddress, "--remember", "--duration", waitTimeout.String())
	s.Require().NoError(err)

	id, err := s.Store().DeviceID()
	s.Require().NoError(err)
	s.Assert().Equal(SimulatedDeviceAddress, id)
}

func (s *WatchTestSuite) TestWatchJSON() {
	// GOAL: Verify JSON output emits one object per state change

	out, err := s.ExecuteSimulated("watch", SimulatedDeviceAddress, "-f", "json", "--duration", waitTimeout.String())
	s.Require().NoError(err)

	body := strings.TrimPrefix(out, "Connected to "+SimulatedDeviceAddress+"\n")
	testutils.NewJSONAsserter(s.T()).Assert(body, `{"active": false, "flash_index": 0, "pattern": [1000, 1000, 250, 250]}`)
}

func (s *WatchTestSuite) TestWatchWithoutAddress() {
	// GOAL: Verify watch without an address and nothing remembered fails fast

	_, err := s.ExecuteSimulated("watch", "--duration", waitTimeout.String())
	s.Require().ErrorIs(err, ErrNoDeviceID)
}

func (s *WatchTestSuite) TestWatchHelpExplainsRemembering() {
	// GOAL: Verify the help states that only --remember stores a device and only forget clears it

	out, err := s.ExecuteCommand("watch", "--help")
	s.Require().NoError(err)
	s.Assert().Contains(out, "only remembered\nwhen --remember is given")
	s.Assert().Contains(out, "run 'picoflash forget' to clear it")
}

func TestWatchTestSuite(t *testing.T) {
	suite.Run(t, new(WatchTestSuite))
}
