package server

import (
	"context"
	"io"

	"github.com/go-git/go-gitwire/utils/ioutil"
)

// AdvertiseReferences writes the reference discovery response for the given
// service. For HTTP transports a smart-reply prelude ("# service=...") is
// written before the refs.
func (s *Session) AdvertiseReferences(ctx context.Context, service string, http bool, w io.Writer) error {
	if err := s.checkAuth(); err != nil {
		return err
	}

	ar, err := s.advRefs(ctx, service, http)
	if err != nil {
		return err
	}

	s.logger.Debug("advertising refs",
		"service", service, "refs", len(ar.References), "format", s.format.String())

	return ar.Encode(ioutil.NewContextWriter(ctx, w))
}

// Serve runs the requested service over the given streams: the
// advertisement followed by the request handling, the way the stateful
// transports (ssh, git) drive a session.
func (s *Session) Serve(ctx context.Context, service string, r io.Reader, w io.Writer) error {
	if err := s.AdvertiseReferences(ctx, service, false, w); err != nil {
		return err
	}

	switch service {
	case UploadPackService:
		return s.UploadPack(ctx, r, w)
	case ReceivePackService:
		return s.ReceivePack(ctx, r, w)
	}

	return ErrInvalidService
}
