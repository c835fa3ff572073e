package nrps

import (
	"bytes"
	"encoding/json"
)

// Serializer converts memberships to and from the IMS membership container.
type Serializer struct{}

func NewSerializer() *Serializer { return &Serializer{} }

type wireMembership struct {
	ID      string   `json:"id"`
	Context *Context `json:"context"`
	Members []Member `json:"members"`
}

// Serialize encodes m. Empty optional attributes are left out of the output.
func (s *Serializer) Serialize(m *Membership) ([]byte, error) {
	members := m.Members().Slice()
	if members == nil {
		members = []Member{}
	}
	return json.Marshal(wireMembership{
		ID:      m.Identifier(),
		Context: m.Context(),
		Members: members,
	})
}

// Deserialize decodes a membership container. The returned membership has no
// relation link; callers attach it from the transport response.
func (s *Serializer) Deserialize(data []byte) (*Membership, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, WrapError(ErrorKindMalformedPayload, err, "membership container must be a JSON object")
	}

	var id string
	if raw, ok := top["id"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, WrapError(ErrorKindMalformedPayload, err, "membership id must be a string")
		}
	}

	ctx := &Context{}
	if raw, ok := top["context"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &ctx); err != nil || ctx == nil {
			return nil, WrapError(ErrorKindMalformedPayload, err, "membership context must be an object")
		}
	}

	raw, ok := top["members"]
	if !ok {
		return nil, NewError(ErrorKindMalformedPayload, "membership container has no members")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, WrapError(ErrorKindMalformedPayload, err, "membership members must be an array")
	}

	members := NewMemberCollection()
	for i, entry := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			return nil, WrapError(ErrorKindMalformedPayload, err, "member %d must be an object", i)
		}
		if uid, ok := fields["user_id"]; !ok || isNull(uid) {
			return nil, NewError(ErrorKindMalformedPayload, "member %d has no user_id", i)
		}
		var m Member
		if err := json.Unmarshal(entry, &m); err != nil {
			return nil, WrapError(ErrorKindMalformedPayload, err, "member %d is invalid", i)
		}
		members.Add(m)
	}

	return NewMembership(id, ctx, members)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
