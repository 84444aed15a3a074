package lobby

// Role negotiation: two participants may never hold the same role. The
// creator keeps whatever role they selected; a joiner's role is always
// derived as the strict complement of the role already visible in the
// session, never chosen independently. When the discovered peer has not
// published a role yet, the joiner falls back to their own selection and the
// peer will complement on its next poll.
func negotiateJoinRole(session *Session, selfID string, selected Role) Role {
	peer, ok := session.Peer(selfID)
	if !ok || !peer.Role.Valid() {
		return selected
	}
	return peer.Role.Complement()
}
