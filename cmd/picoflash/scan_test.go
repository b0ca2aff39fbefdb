package main

import (
	"testing"

	"github.com/srg/picoflash/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type ScanTestSuite struct {
	CommandTestSuite
}

func (s *ScanTestSuite) TestScanTable() {
	// GOAL: Verify the simulated peripheral is listed once despite repeated advertisements
	//
	// TEST SCENARIO: scan for 200ms with a 20ms advertising interval → single table row

	out, err := s.ExecuteSimulated("scan", "-d", "200ms")
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(out, `
ADDRESS            NAME      RSSI     CONNECTABLE
-------            ----      ----     -----------
5A:17:00:00:00:01  Ney Tack  -42 dBm  yes`)
}

func (s *ScanTestSuite) TestScanJSON() {
	// GOAL: Verify JSON output lists peripherals as an array

	out, err := s.ExecuteSimulated("scan", "-d", "200ms", "--format", "json")
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(out, `[
		{"id": "5A:17:00:00:00:01", "name": "Ney Tack", "rssi": -42, "connectable": true}
	]`)
}

func (s *ScanTestSuite) TestScanInvalidFormat() {
	// GOAL: Verify an unknown format is rejected before scanning

	_, err := s.ExecuteSimulated("scan", "-d", "50ms", "-f", "csv")
	s.Require().ErrorContains(err, "unsupported format: csv")
}

func TestScanTestSuite(t *testing.T) {
	suite.Run(t, new(ScanTestSuite))
}
