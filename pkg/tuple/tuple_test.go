// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package tuple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTupleKeyForms(t *testing.T) {
	tpl := New("rbac", "role_binding", "binding-1", "subject", "rbac", "group", "group-1")

	assert.Equal(t, "rbac/role_binding:binding-1", tpl.ObjectString())
	assert.Equal(t, "rbac/group:group-1", tpl.SubjectString())
	assert.Equal(t, "rbac/role_binding:binding-1#subject@rbac/group:group-1", tpl.Key())
	assert.Equal(t, tpl.Key(), tpl.String())
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name          string
		ref           string
		wantNamespace string
		wantType      string
		wantID        string
		wantErr       bool
	}{
		{
			name:          "well formed reference",
			ref:           "rbac/workspace:org-default",
			wantNamespace: "rbac",
			wantType:      "workspace",
			wantID:        "org-default",
		},
		{
			name:          "id containing colons",
			ref:           "rbac/principal:localhost/user-1",
			wantNamespace: "rbac",
			wantType:      "principal",
			wantID:        "localhost/user-1",
		},
		{
			name:    "missing id separator",
			ref:     "rbac/workspace",
			wantErr: true,
		},
		{
			name:    "missing namespace separator",
			ref:     "workspace:org-default",
			wantErr: true,
		},
		{
			name:    "empty id",
			ref:     "rbac/workspace:",
			wantErr: true,
		},
		{
			name:    "empty namespace",
			ref:     "/workspace:org-default",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			namespace, typeName, id, err := ParseRef(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNamespace, namespace)
			assert.Equal(t, tt.wantType, typeName)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestFromStrings(t *testing.T) {
	tpl, err := FromStrings("rbac/group:g-1", "member", "rbac/principal:user-1")
	require.NoError(t, err)
	assert.Equal(t, New("rbac", "group", "g-1", "member", "rbac", "principal", "user-1"), tpl)

	_, err = FromStrings("rbac/group:g-1", "", "rbac/principal:user-1")
	assert.Error(t, err, "empty relation must be rejected")

	_, err = FromStrings("group:g-1", "member", "rbac/principal:user-1")
	assert.Error(t, err)

	_, err = FromStrings("rbac/group:g-1", "member", "principal")
	assert.Error(t, err)
}

func TestFromStringsRoundTrip(t *testing.T) {
	original := New("rbac", "role", "r-1", "app_hosts_read", "rbac", "principal", "*")
	parsed, err := FromStrings(original.ObjectString(), original.Relation, original.SubjectString())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}
