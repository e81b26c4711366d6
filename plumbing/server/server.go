// Package server implements the server side of the Git smart protocol: the
// info/refs advertisement, the upload-pack negotiation and the receive-pack
// ingest. It is agnostic of repository backend, network transport and
// authentication, which it consumes through the storer interfaces.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/go-git/go-gitwire/config"
	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp/capability"
	"github.com/go-git/go-gitwire/plumbing/storer"
)

// Service names of the smart protocol.
const (
	UploadPackService  = "git-upload-pack"
	ReceivePackService = "git-receive-pack"
)

// ErrInvalidService is returned for service names other than
// git-upload-pack and git-receive-pack.
var ErrInvalidService = fmt.Errorf("invalid service")

// Session drives the smart protocol for one transport request. Its state -
// negotiated capabilities, parsed commands - is local to the session and
// never shared across sessions.
type Session struct {
	storage storer.RepositoryAccess
	auth    storer.AuthenticationService
	format  hash.Format
	logger  *slog.Logger

	workers       int
	memLimit      int64
	cacheFS       billy.Filesystem
	cleanCache    bool
	windowSize    int
	windowSet     bool
	channelBuffer int

	authenticated bool
}

// defaultChannelBuffer is the back-pressure bound on the inter-stage
// channels when no other value is configured.
const defaultChannelBuffer = 32

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithAuth sets the authentication service consulted once per session.
func WithAuth(a storer.AuthenticationService) SessionOption {
	return func(s *Session) { s.auth = a }
}

// WithObjectFormat sets the session object format. Defaults to SHA1.
func WithObjectFormat(f hash.Format) SessionOption {
	return func(s *Session) { s.format = f }
}

// WithLogger sets the structured logger for session events.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithWorkers bounds delta-work parallelism during pack decode.
func WithWorkers(n int) SessionOption {
	return func(s *Session) { s.workers = n }
}

// WithMemLimit caps decoder base retention; see packfile.WithMemLimit.
func WithMemLimit(bytes int64) SessionOption {
	return func(s *Session) { s.memLimit = bytes }
}

// WithSpillCache sets the decoder spill filesystem.
func WithSpillCache(fs billy.Filesystem, clean bool) SessionOption {
	return func(s *Session) {
		s.cacheFS = fs
		s.cleanCache = clean
	}
}

// WithWindowSize sets the encoder delta-search window; zero disables delta
// compression.
func WithWindowSize(n int) SessionOption {
	return func(s *Session) {
		s.windowSize = n
		s.windowSet = true
	}
}

// WithChannelBuffer bounds the inter-stage channels used while streaming
// packs.
func WithChannelBuffer(n int) SessionOption {
	return func(s *Session) { s.channelBuffer = n }
}

// WithOptions applies a config.Options value: hash kind, worker threads,
// memory limit, delta window and channel buffer. When a memory limit and a
// cache directory are both set, an on-disk spill cache is attached.
func WithOptions(o *config.Options) SessionOption {
	return func(s *Session) {
		if f, err := o.Format(); err == nil {
			s.format = f
		}

		s.workers = o.WorkerThreads
		s.memLimit = o.MemLimit
		s.windowSize = o.WindowSize
		s.windowSet = true
		s.channelBuffer = o.ChannelBuffer

		if o.MemLimit > 0 && o.CacheDir != "" {
			s.cacheFS = osfs.New(o.CacheDir)
			s.cleanCache = o.CleanCache
		}
	}
}

// NewSession returns a session over the given repository.
func NewSession(storage storer.RepositoryAccess, opts ...SessionOption) *Session {
	s := &Session{
		storage: storage,
		auth:    storer.NoAuth{},
		format:  hash.SHA1,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AuthenticateHTTP validates the session from HTTP headers. It must be
// called, successfully, before any service method.
func (s *Session) AuthenticateHTTP(ctx context.Context, headers map[string]string) error {
	if err := s.auth.AuthenticateHTTP(ctx, headers); err != nil {
		return err
	}

	s.authenticated = true
	return nil
}

// AuthenticateSSH validates the session from SSH credentials. It must be
// called, successfully, before any service method.
func (s *Session) AuthenticateSSH(ctx context.Context, username string, publicKey []byte) error {
	if err := s.auth.AuthenticateSSH(ctx, username, publicKey); err != nil {
		return err
	}

	s.authenticated = true
	return nil
}

func (s *Session) checkAuth() error {
	if !s.authenticated {
		return storer.ErrUnauthorized
	}
	return nil
}

// capabilities returns the advertised capability list for a service.
func (s *Session) capabilities(service string) (*capability.List, error) {
	caps := capability.NewList()

	switch service {
	case UploadPackService:
		caps.Add(capability.MultiACKDetailed) //nolint:errcheck
		caps.Add(capability.NoDone)           //nolint:errcheck
		caps.Add(capability.IncludeTag)       //nolint:errcheck
	case ReceivePackService:
		caps.Add(capability.ReportStatus)   //nolint:errcheck
		caps.Add(capability.ReportStatusV2) //nolint:errcheck
		caps.Add(capability.DeleteRefs)     //nolint:errcheck
		caps.Add(capability.Atomic)         //nolint:errcheck
		caps.Add(capability.NoThin)         //nolint:errcheck
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidService, service)
	}

	caps.Add(capability.Sideband)                                //nolint:errcheck
	caps.Add(capability.Sideband64k)                             //nolint:errcheck
	caps.Add(capability.OFSDelta)                                //nolint:errcheck
	caps.Add(capability.ObjectFormat, s.format.String())         //nolint:errcheck
	caps.Add(capability.Agent, capability.DefaultAgent())        //nolint:errcheck

	return caps, nil
}

// advRefs builds the advertisement for a service.
func (s *Session) advRefs(ctx context.Context, service string, http bool) (*packp.AdvRefs, error) {
	caps, err := s.capabilities(service)
	if err != nil {
		return nil, err
	}

	refs, err := s.storage.ListRefs(ctx)
	if err != nil {
		return nil, err
	}

	ar := packp.NewAdvRefs()
	ar.Service = service
	ar.HTTP = http
	ar.Capabilities = caps
	ar.Format = s.format

	for _, r := range refs {
		if r.Name == plumbing.HEAD {
			h := r.Hash
			ar.Head = &h
			continue
		}
		ar.References = append(ar.References, r)
	}

	return ar, nil
}
