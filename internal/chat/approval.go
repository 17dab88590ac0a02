package chat

import "github.com/C4AI/blab-controller/internal/types"

// ApprovalStatusFor decides the approval state of a new message from its
// sender kind and whether the conversation has a bot manager. Messages
// from humans, and all messages in unmanaged conversations, are approved
// immediately; bot messages in managed conversations wait for the
// manager (unless the manager self-approves, which overrides this).
func ApprovalStatusFor(sender types.ParticipantKind, conversationHasManager bool) types.ApprovalStatus {
	if sender == types.KindHuman || !conversationHasManager {
		return types.AutomaticallyApproved
	}
	return types.NotApproved
}
