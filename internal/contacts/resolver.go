package contacts

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

// Resolver maps raw phone/email identifiers to display names. The lookup
// tables are built at most once per process, gated by the identity source's
// access grant; resolution itself never fails and always returns some string.
type Resolver struct {
	source Source
	logger *zap.Logger

	mu     sync.Mutex
	built  bool
	phones map[string]string // digit-only phone forms -> display name
	emails map[string]string // lowercased email -> display name
	cache  map[string]string // raw identifier -> resolved name
}

// NewResolver creates a resolver over the given identity source.
func NewResolver(source Source, logger *zap.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger,
		phones: make(map[string]string),
		emails: make(map[string]string),
		cache:  make(map[string]string),
	}
}

// EnsureAccess requests the access grant if undetermined and builds the
// lookup tables once it is granted. Concurrent callers are serialized; a
// denied or unavailable source leaves the resolver in fallback mode.
func (r *Resolver) EnsureAccess(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		return
	}

	status := r.source.AccessStatus()
	if status == AccessUndetermined {
		granted, err := r.source.RequestAccess(ctx)
		if err != nil {
			r.logger.Warn("identity access request failed", zap.Error(err))
			return
		}
		if granted {
			status = AccessGranted
		} else {
			status = AccessDenied
		}
	}
	if status != AccessGranted {
		r.logger.Info("identity source not granted, using raw identifiers")
		return
	}

	ids, err := r.source.Identities(ctx)
	if err != nil {
		r.logger.Warn("identity enumeration failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		name := id.DisplayName()
		if name == "" {
			continue
		}
		for _, phone := range id.Phones {
			digits := digitsOf(phone)
			if len(digits) < 7 {
				continue
			}
			r.storePhone(digits, name)
			if len(digits) > 10 {
				r.storePhone(digits[len(digits)-10:], name)
			}
		}
		for _, email := range id.Emails {
			key := strings.ToLower(email)
			if _, ok := r.emails[key]; !ok {
				r.emails[key] = name
			}
		}
	}
	r.built = true
	r.logger.Info("identity lookup built",
		zap.Int("phone_keys", len(r.phones)),
		zap.Int("email_keys", len(r.emails)))
}

// First write wins for identifiers shared between identities.
func (r *Resolver) storePhone(key, name string) {
	if _, ok := r.phones[key]; !ok {
		r.phones[key] = name
	}
}

// DisplayName resolves an identifier to a display name. Unmatched
// identifiers fall back to a formatted version of the raw value. Results
// are memoized for the process lifetime.
func (r *Resolver) DisplayName(identifier string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[identifier]; ok {
		return cached
	}
	name, ok := r.lookup(identifier)
	if !ok {
		name = FormatIdentifier(identifier)
	}
	r.cache[identifier] = name
	return name
}

func (r *Resolver) lookup(identifier string) (string, bool) {
	hasAt := strings.Contains(identifier, "@")

	if !hasAt && strings.ContainsFunc(identifier, unicode.IsDigit) {
		digits := digitsOf(identifier)
		if name, ok := r.phones[digits]; ok {
			return name, true
		}
		if len(digits) > 10 {
			if name, ok := r.phones[digits[len(digits)-10:]]; ok {
				return name, true
			}
		}
	}

	if hasAt {
		if name, ok := r.emails[strings.ToLower(identifier)]; ok {
			return name, true
		}
	}
	return "", false
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatIdentifier renders an unmatched identifier for display. An 11-digit
// +1 number becomes +1-AAA-EEE-NNNN; everything else passes through.
func FormatIdentifier(identifier string) string {
	if strings.HasPrefix(identifier, "+1") {
		digits := digitsOf(identifier)
		if len(digits) == 11 {
			return "+1-" + digits[1:4] + "-" + digits[4:7] + "-" + digits[7:]
		}
	}
	return identifier
}
