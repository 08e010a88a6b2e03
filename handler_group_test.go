// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"testing"

	"github.com/google/uuid"
	openfga "github.com/openfga/go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	. "github.com/openfga/go-sdk/client"
)

func TestGroupMembershipHandler(t *testing.T) {
	groupID := uuid.NewString()
	tests := []struct {
		name          string
		messageData   []byte
		replySubject  string
		setupMocks    func(*HandlerService, *MockNatsMsg)
		expectedError bool
	}{
		{
			name: "members added and removed",
			messageData: mustJSON(groupEvent{
				Tenant:         tenantStub{ID: "tenant-1", OrgID: "org-acme"},
				Group:          groupStub{ID: groupID, Name: "operators"},
				AddedMembers:   []string{"user-1", "user-2"},
				RemovedMembers: []string{"user-3"},
			}),
			replySubject: "reply.subject",
			setupMocks: func(service *HandlerService, msg *MockNatsMsg) {
				msg.On("Respond", []byte("OK")).Return(nil).Once()

				// The removed member is live, the added ones are not.
				service.fgaService.client.(*MockFgaClient).On("Read", mock.Anything, mock.Anything, mock.Anything).
					Return(&ClientReadResponse{
						Tuples: []openfga.Tuple{
							liveTuple("rbac/group:"+groupID, "member", "rbac/principal:user-3"),
						},
						ContinuationToken: "",
					}, nil).Once()
				service.fgaService.client.(*MockFgaClient).On("Write", mock.Anything, mock.MatchedBy(func(req ClientWriteRequest) bool {
					return len(req.Writes) == 2 && len(req.Deletes) == 1
				})).Return(&ClientWriteResponse{}, nil).Once()
			},
			expectedError: false,
		},
		{
			name: "no membership change",
			messageData: mustJSON(groupEvent{
				Tenant: tenantStub{ID: "tenant-1", OrgID: "org-acme"},
				Group:  groupStub{ID: uuid.NewString(), Name: "operators"},
			}),
			replySubject: "reply.subject",
			setupMocks: func(service *HandlerService, msg *MockNatsMsg) {
				msg.On("Respond", []byte("OK")).Return(nil).Once()
			},
			expectedError: false,
		},
		{
			name:         "invalid JSON",
			messageData:  []byte("not-json"),
			replySubject: "reply.subject",
			setupMocks: func(service *HandlerService, msg *MockNatsMsg) {
				msg.On("Respond", []byte("group event parse error")).Return(nil).Once()
			},
			expectedError: true,
		},
		{
			name: "malformed group id",
			messageData: mustJSON(groupEvent{
				Tenant:       tenantStub{ID: "tenant-1", OrgID: "org-acme"},
				Group:        groupStub{ID: "not-a-uuid"},
				AddedMembers: []string{"user-1"},
			}),
			replySubject: "reply.subject",
			setupMocks: func(service *HandlerService, msg *MockNatsMsg) {
				msg.On("Respond", []byte("group event parse error")).Return(nil).Once()
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := setupService()
			msg := CreateMockNatsMsg(tt.messageData)
			msg.reply = tt.replySubject
			tt.setupMocks(service, msg)

			err := service.groupMembershipHandler(msg)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			msg.AssertExpectations(t)
			service.fgaService.client.(*MockFgaClient).AssertExpectations(t)
		})
	}
}

func TestPolicyBindingHandlerWithNoMappedBindings(t *testing.T) {
	service := setupService()

	// The role has no binding mappings, so there is nothing to attach the
	// group to and no store call is made.
	msg := CreateMockNatsMsg(mustJSON(policyEvent{
		Tenant: tenantStub{ID: "tenant-1", OrgID: "org-acme"},
		Group:  groupStub{ID: uuid.NewString(), Name: "operators"},
		AddedRoles: []roleStub{
			{ID: uuid.NewString(), Name: "admin"},
		},
	}))
	msg.reply = "reply.subject"
	msg.On("Respond", []byte("OK")).Return(nil).Once()

	require.NoError(t, service.policyBindingHandler(msg))
	msg.AssertExpectations(t)
	service.fgaService.client.(*MockFgaClient).AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestPolicyBindingHandlerInvalidPayload(t *testing.T) {
	service := setupService()
	msg := CreateMockNatsMsg([]byte("not-json"))
	msg.reply = "reply.subject"
	msg.On("Respond", []byte("policy event parse error")).Return(nil).Once()

	assert.Error(t, service.policyBindingHandler(msg))
	msg.AssertExpectations(t)
}
