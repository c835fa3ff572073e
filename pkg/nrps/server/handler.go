// Package server serves memberships to tools. Roster construction and
// pagination are delegated to a Builder.
package server

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/quipper/lti/nrps/pkg/common/logger"
	"github.com/quipper/lti/nrps/pkg/lti"
	"github.com/quipper/lti/nrps/pkg/lti/validator"
	"github.com/quipper/lti/nrps/pkg/nrps"
)

// Builder produces the membership returned for a request. It owns roster
// population and pagination, including the relation link of the result.
// Nil pointers mean the parameter was not sent.
type Builder interface {
	BuildContextMembership(ctx context.Context, reg *lti.Registration, role *string, limit, offset *int) (*nrps.Membership, error)
	BuildResourceLinkMembership(ctx context.Context, reg *lti.Registration, rlid string, role *string, limit, offset *int) (*nrps.Membership, error)
}

// Handler is the platform side of the membership service.
type Handler struct {
	builder    Builder
	serializer *nrps.Serializer
}

var _ validator.ServiceHandler = (*Handler)(nil)

func NewHandler(builder Builder) *Handler {
	return &Handler{builder: builder, serializer: nrps.NewSerializer()}
}

func (h *Handler) ServiceName() string { return nrps.ServiceName }

func (h *Handler) AllowedMethods() []string { return []string{http.MethodGet} }

func (h *Handler) AllowedContentType() string { return nrps.ContentTypeMembership }

func (h *Handler) AllowedScopes() []string { return []string{nrps.ScopeMembershipReadonly} }

// HandleValidatedServiceRequest answers a request whose token was already
// validated. Builder failures are returned untouched and nothing is written.
func (h *Handler) HandleValidatedServiceRequest(w http.ResponseWriter, r *http.Request, result *validator.Result) error {
	ctx := r.Context()
	params, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		logger.Debug("nrps server: malformed query %q: %v", r.URL.RawQuery, err)
	}

	rlid := lastValue(params, "rlid")
	role := lastValue(params, "role")
	limit := intValue(params, "limit")
	offset := intValue(params, "offset")

	var membership *nrps.Membership
	if rlid != nil {
		membership, err = h.builder.BuildResourceLinkMembership(ctx, result.Registration, *rlid, role, limit, offset)
	} else {
		membership, err = h.builder.BuildContextMembership(ctx, result.Registration, role, limit, offset)
	}
	if err != nil {
		return err
	}

	body, err := h.serializer.Serialize(membership)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", nrps.ContentTypeMembership)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if membership.HasRelationLink() {
		w.Header().Set(nrps.HeaderLink, membership.RelationLink())
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Warn("nrps server: write response: %v", err)
	}
	logger.Debug("nrps server: served membership id=%s members=%d", membership.Identifier(), membership.Members().Count())
	return nil
}

// lastValue returns the last value sent for key, nil when the key is absent.
func lastValue(params url.Values, key string) *string {
	vs, ok := params[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[len(vs)-1]
	return &v
}

func intValue(params url.Values, key string) *int {
	v := lastValue(params, key)
	if v == nil {
		return nil
	}
	n := leadingInt(*v)
	return &n
}

// leadingInt parses the optional sign and leading digits of s, ignoring
// surrounding garbage; "5x" is 5 and "abc" is 0. Out of range values
// saturate at math.MaxInt32 / math.MinInt32.
func leadingInt(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	var limit int64 = math.MaxInt32
	if neg {
		limit = -math.MinInt32
	}
	var n int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
		if n >= limit {
			n = limit
			break
		}
	}
	if neg {
		n = -n
	}
	return int(n)
}
