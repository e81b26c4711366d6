package capability

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type SuiteCapabilities struct {
	suite.Suite
}

func TestSuiteCapabilities(t *testing.T) {
	suite.Run(t, new(SuiteCapabilities))
}

func (s *SuiteCapabilities) TestIsEmpty() {
	cap := NewList()
	s.True(cap.IsEmpty())
}

func (s *SuiteCapabilities) TestDecode() {
	cap := NewList()
	err := cap.Decode([]byte("symref=foo symref=qux thin-pack"))
	s.NoError(err)

	s.Len(cap.m, 2)
	s.Equal([]string{"foo", "qux"}, cap.Get(SymRef))
	s.Nil(cap.Get(ThinPack))
}

func (s *SuiteCapabilities) TestDecodeWithLeadingSpace() {
	cap := NewList()
	err := cap.Decode([]byte(" report-status"))
	s.NoError(err)

	s.Len(cap.m, 1)
	s.True(cap.Supports(ReportStatus))
}

func (s *SuiteCapabilities) TestDecodeEmpty() {
	cap := NewList()
	err := cap.Decode(nil)
	s.NoError(err)
	s.Equal(NewList(), cap)
}

func (s *SuiteCapabilities) TestDecodeWithErrArguments() {
	cap := NewList()
	err := cap.Decode([]byte("thin-pack=foo"))
	s.ErrorIs(err, ErrArguments)
}

func (s *SuiteCapabilities) TestDecodeWithEqual() {
	cap := NewList()
	err := cap.Decode([]byte("agent=foo=bar"))
	s.NoError(err)

	s.Len(cap.m, 1)
	s.Equal([]string{"foo=bar"}, cap.Get(Agent))
}

func (s *SuiteCapabilities) TestDecodeWithUnknownCapability() {
	cap := NewList()
	err := cap.Decode([]byte("foo"))
	s.NoError(err)
	s.True(cap.Supports(Capability("foo")))
}

func (s *SuiteCapabilities) TestDecodeObjectFormat() {
	cap := NewList()
	err := cap.Decode([]byte("side-band-64k object-format=sha256 agent=git/2.42.0"))
	s.NoError(err)

	s.True(cap.Supports(Sideband64k))
	s.Equal([]string{"sha256"}, cap.Get(ObjectFormat))
	s.Equal([]string{"git/2.42.0"}, cap.Get(Agent))
}

func (s *SuiteCapabilities) TestString() {
	cap := NewList()
	cap.Set(Agent, "bar")      //nolint:errcheck
	cap.Set(SymRef, "foo:qux") //nolint:errcheck
	cap.Set(ThinPack)          //nolint:errcheck

	s.Equal("agent=bar symref=foo:qux thin-pack", cap.String())
}

func (s *SuiteCapabilities) TestSet() {
	cap := NewList()
	err := cap.Add(SymRef, "foo", "qux")
	s.NoError(err)
	err = cap.Set(SymRef, "bar")
	s.NoError(err)

	s.Len(cap.m, 1)
	s.Equal([]string{"bar"}, cap.Get(SymRef))
}

func (s *SuiteCapabilities) TestSetEmpty() {
	cap := NewList()
	err := cap.Set(Agent, "")
	s.ErrorIs(err, ErrEmptyArgument)
}

func (s *SuiteCapabilities) TestGetEmpty() {
	cap := NewList()
	s.Len(cap.Get(Agent), 0)
}

func (s *SuiteCapabilities) TestDelete() {
	cap := NewList()
	s.NoError(cap.Add(Sideband))
	s.NoError(cap.Add(OFSDelta))

	cap.Delete(Sideband)
	s.False(cap.Supports(Sideband))
	s.Equal("ofs-delta", cap.String())
}

func (s *SuiteCapabilities) TestAddArgumentsRequired() {
	cap := NewList()
	err := cap.Add(Agent)
	s.ErrorIs(err, ErrArgumentsRequired)
}

func (s *SuiteCapabilities) TestAddMultipleArguments() {
	cap := NewList()
	s.NoError(cap.Add(Agent, "foo"))
	err := cap.Add(Agent, "bar")
	s.ErrorIs(err, ErrMultipleArguments)
}

func (s *SuiteCapabilities) TestDefaultAgent() {
	s.Contains(DefaultAgent(), "go-gitwire/")
}
