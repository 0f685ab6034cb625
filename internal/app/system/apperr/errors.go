package apperr

import "net/http"

// Status convention: uniqueness of names and handles is 409; membership
// state violations (already a member, owner leaving, leaving a group you
// are not in) are 400, as existing clients expect.

var (
	Unauthenticated = New(KindUnauthenticated, "unauthenticated", "Please sign in.")
	UserIDRequired  = New(KindForbidden, "user_id_required", "Choose a user id before using groups.")
	RateLimited     = New(KindRateLimited, "rate_limited", "Too many requests. Please slow down.")
	BadRequest      = New(KindInvalidInput, "bad_request", "The request body could not be read.")
	SignInFailed    = New(KindUnauthenticated, "sign_in_failed", "Google sign-in did not complete. Please try again.")
	SignInDisabled  = New(KindInternal, "sign_in_unavailable", "Google sign-in is not configured.").WithStatus(http.StatusServiceUnavailable)

	// identity
	InvalidUserID   = New(KindInvalidInput, "invalid_user_id", "User id must be 3-30 letters, digits, '_' or '-'.")
	UserIDTaken     = New(KindConflict, "user_id_taken", "That user id is already taken.")
	UserIDImmutable = New(KindConflict, "user_id_immutable", "Your user id is already set and cannot be changed.").WithStatus(http.StatusForbidden)

	// registry
	GroupNotFound       = New(KindNotFound, "group_not_found", "Group not found.")
	GroupNameTaken      = New(KindConflict, "group_name_taken", "A group with this name already exists.")
	InvalidGroup        = New(KindInvalidInput, "invalid_group", "Group details are invalid.")
	PasswordRequired    = New(KindInvalidInput, "password_required", "This group requires a password.")
	InviteCodeExhausted = New(KindInternal, "invite_code_exhausted", "Could not generate an invite code. Please try again.")

	// membership
	NotMember         = New(KindForbidden, "not_member", "You are not a member of this group.")
	NotMemberToLeave  = New(KindConflict, "not_member", "You are not a member of this group.").WithStatus(http.StatusBadRequest)
	AlreadyMember     = New(KindConflict, "already_member", "You are already a member of this group.").WithStatus(http.StatusBadRequest)
	JoinPending       = New(KindConflict, "join_pending", "Your request to join is awaiting approval.").WithStatus(http.StatusBadRequest)
	OwnerCannotLeave  = New(KindConflict, "owner_cannot_leave", "The owner cannot leave the group.").WithStatus(http.StatusBadRequest)
	InvalidInviteCode = New(KindInvalidInput, "invalid_invite_code", "The invite code does not match this group.")
	WrongPassword     = New(KindUnauthenticated, "wrong_password", "Incorrect group password.")
	GroupFull         = New(KindConflict, "group_full", "This group is full.").WithStatus(http.StatusBadRequest)
	NotModerator      = New(KindForbidden, "not_moderator", "Only the owner or an admin can do that.")
	NotOwner          = New(KindForbidden, "not_owner", "Only the owner can do that.")
	NoPendingRequest  = New(KindNotFound, "request_not_found", "No pending request for that user.")
	MemberNotFound    = New(KindNotFound, "member_not_found", "That user is not a member of this group.")
	InvalidRole       = New(KindInvalidInput, "invalid_role", "Role must be admin or member.")

	// messaging
	EmptyMessage   = New(KindInvalidInput, "empty_message", "Message cannot be empty.")
	MessageTooLong = New(KindInvalidInput, "message_too_long", "Message must be 2000 characters or fewer.")

	// presence
	InvalidCoordinates = New(KindInvalidInput, "invalid_coordinates", "Latitude must be within [-90, 90] and longitude within [-180, 180].")
	InvalidStatus      = New(KindInvalidInput, "invalid_status", "Status must be studying, busy or offline.")
	FocusNotActive     = New(KindInvalidInput, "focus_not_active", "No focus session is running.")
	InvalidFocus       = New(KindInvalidInput, "invalid_focus", "Target duration must be 600 minutes or fewer.")
	InvalidPeriod      = New(KindInvalidInput, "invalid_period", "Period must be today, week or month.")
)
