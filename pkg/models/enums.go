// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

// MatchmakingState is the lifecycle of one matchmaking policy.
type MatchmakingState int

const (
	MatchmakingStateNotStarted MatchmakingState = iota
	MatchmakingStateStarting
	MatchmakingStateSearching
	MatchmakingStateRequestingReservation
	MatchmakingStateJoiningSession
	MatchmakingStateCreatingSession
	MatchmakingStateComplete
	MatchmakingStateCanceling
	MatchmakingStateCanceled
	MatchmakingStateFailure
)

var matchmakingStateNames = map[MatchmakingState]string{
	MatchmakingStateNotStarted:            "NotStarted",
	MatchmakingStateStarting:              "Starting",
	MatchmakingStateSearching:             "Searching",
	MatchmakingStateRequestingReservation: "RequestingReservation",
	MatchmakingStateJoiningSession:        "JoiningSession",
	MatchmakingStateCreatingSession:       "CreatingSession",
	MatchmakingStateComplete:              "Complete",
	MatchmakingStateCanceling:             "Canceling",
	MatchmakingStateCanceled:              "Canceled",
	MatchmakingStateFailure:               "Failure",
}

func (s MatchmakingState) String() string {
	if name, ok := matchmakingStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsTerminal reports whether no further transition can happen.
func (s MatchmakingState) IsTerminal() bool {
	return s == MatchmakingStateComplete || s == MatchmakingStateCanceled || s == MatchmakingStateFailure
}

// SearchPassState is the lifecycle of one search pass.
type SearchPassState int

const (
	SearchPassStateNotStarted SearchPassState = iota
	SearchPassStateSearching
	SearchPassStatePingingSessions
	SearchPassStateComplete
	SearchPassStateCanceling
	SearchPassStateCanceled
	SearchPassStateFailure
)

var searchPassStateNames = map[SearchPassState]string{
	SearchPassStateNotStarted:      "NotStarted",
	SearchPassStateSearching:       "Searching",
	SearchPassStatePingingSessions: "PingingSessions",
	SearchPassStateComplete:        "Complete",
	SearchPassStateCanceling:       "Canceling",
	SearchPassStateCanceled:        "Canceled",
	SearchPassStateFailure:         "Failure",
}

func (s SearchPassState) String() string {
	if name, ok := searchPassStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// CompleteResult is the terminal result of a matchmaking policy.
type CompleteResult int

const (
	CompleteResultNotStarted CompleteResult = iota
	CompleteResultSuccess
	CompleteResultSessionCreated
	CompleteResultNoResults
	CompleteResultFailure
	CompleteResultCanceled
)

var completeResultNames = map[CompleteResult]string{
	CompleteResultNotStarted:     "NotStarted",
	CompleteResultSuccess:        "Success",
	CompleteResultSessionCreated: "SessionCreated",
	CompleteResultNoResults:      "NoResults",
	CompleteResultFailure:        "Failure",
	CompleteResultCanceled:       "Canceled",
}

func (r CompleteResult) String() string {
	if name, ok := completeResultNames[r]; ok {
		return name
	}
	return "Unknown"
}

// IsSuccess reports whether the caller ended up in a session.
func (r CompleteResult) IsSuccess() bool {
	return r == CompleteResultSuccess || r == CompleteResultSessionCreated
}

// FailureReason qualifies a CompleteResultFailure.
type FailureReason int

const (
	FailureReasonNone FailureReason = iota
	FailureReasonUnknown
	FailureReasonInvalidParams
	FailureReasonSearchFailure
	FailureReasonCreateFailure
	FailureReasonJoinFailure
	FailureReasonDestroyFailure
)

var failureReasonNames = map[FailureReason]string{
	FailureReasonNone:           "None",
	FailureReasonUnknown:        "Unknown",
	FailureReasonInvalidParams:  "InvalidParams",
	FailureReasonSearchFailure:  "SearchFailure",
	FailureReasonCreateFailure:  "CreateFailure",
	FailureReasonJoinFailure:    "JoinFailure",
	FailureReasonDestroyFailure: "DestroyFailure",
}

func (r FailureReason) String() string {
	if name, ok := failureReasonNames[r]; ok {
		return name
	}
	return "Unknown"
}

// PassCompleteResult is the terminal result of one search pass.
type PassCompleteResult int

const (
	PassCompleteResultSuccess PassCompleteResult = iota
	PassCompleteResultNoSession
	PassCompleteResultFailure
	PassCompleteResultCanceled
)

var passCompleteResultNames = map[PassCompleteResult]string{
	PassCompleteResultSuccess:   "Success",
	PassCompleteResultNoSession: "NoSession",
	PassCompleteResultFailure:   "Failure",
	PassCompleteResultCanceled:  "Canceled",
}

func (r PassCompleteResult) String() string {
	if name, ok := passCompleteResultNames[r]; ok {
		return name
	}
	return "Unknown"
}

// ReservationCompleteResult is the answer of a reservation ledger to a request.
type ReservationCompleteResult int

const (
	ReservationNoResult ReservationCompleteResult = iota
	ReservationAccepted
	ReservationDenied
	ReservationInvalid
	ReservationLimitReached
	ReservationDuplicate
	ReservationRequestCanceled
	ReservationUnknownError
)

var reservationResultNames = map[ReservationCompleteResult]string{
	ReservationNoResult:        "NoResult",
	ReservationAccepted:        "ReservationAccepted",
	ReservationDenied:          "ReservationDenied",
	ReservationInvalid:         "ReservationInvalid",
	ReservationLimitReached:    "ReservationLimitReached",
	ReservationDuplicate:       "ReservationDuplicate",
	ReservationRequestCanceled: "ReservationRequestCanceled",
	ReservationUnknownError:    "UnknownError",
}

func (r ReservationCompleteResult) String() string {
	if name, ok := reservationResultNames[r]; ok {
		return name
	}
	return "Unknown"
}

// MatchmakingMode selects which phases a policy runs.
type MatchmakingMode int

const (
	// MatchmakingModeDefault searches with a widening skill window and hosts as a last resort.
	MatchmakingModeDefault MatchmakingMode = iota
	// MatchmakingModeCreateOnly skips search and hosts.
	MatchmakingModeCreateOnly
	// MatchmakingModeSearchOnly runs one pass and reports whether anything was found.
	MatchmakingModeSearchOnly
	// MatchmakingModeJoinOnly joins a given session, requesting a reservation first when needed.
	MatchmakingModeJoinOnly
)

var matchmakingModeNames = map[MatchmakingMode]string{
	MatchmakingModeDefault:    "Default",
	MatchmakingModeCreateOnly: "CreateOnly",
	MatchmakingModeSearchOnly: "SearchOnly",
	MatchmakingModeJoinOnly:   "JoinOnly",
}

func (m MatchmakingMode) String() string {
	if name, ok := matchmakingModeNames[m]; ok {
		return name
	}
	return "Unknown"
}

// CanHost reports whether a policy in this mode may end up creating a session.
func (m MatchmakingMode) CanHost() bool {
	return m == MatchmakingModeDefault || m == MatchmakingModeCreateOnly
}

// SpecificSessionQueryType selects the discovery strategy of a search attempt.
type SpecificSessionQueryType int

const (
	SpecificSessionQueryUnspecified SpecificSessionQueryType = iota
	SpecificSessionQueryFriendID
	SpecificSessionQuerySessionID
	SpecificSessionQuerySessionOwnerID
)

var specificSessionQueryNames = map[SpecificSessionQueryType]string{
	SpecificSessionQueryUnspecified:    "Unspecified",
	SpecificSessionQueryFriendID:       "FriendId",
	SpecificSessionQuerySessionID:      "SessionId",
	SpecificSessionQuerySessionOwnerID: "SessionOwnerId",
}

func (t SpecificSessionQueryType) String() string {
	if name, ok := specificSessionQueryNames[t]; ok {
		return name
	}
	return "Unknown"
}

// SessionState is the directory-side state of a named session.
type SessionState int

const (
	SessionStateNoSession SessionState = iota
	SessionStateCreating
	SessionStatePending
	SessionStateInProgress
	SessionStateDestroying
)

var sessionStateNames = map[SessionState]string{
	SessionStateNoSession:  "NoSession",
	SessionStateCreating:   "Creating",
	SessionStatePending:    "Pending",
	SessionStateInProgress: "InProgress",
	SessionStateDestroying: "Destroying",
}

func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// JoinResult is the directory answer to a join request.
type JoinResult int

const (
	JoinResultSuccess JoinResult = iota
	JoinResultSessionIsFull
	JoinResultSessionDoesNotExist
	JoinResultAlreadyInSession
	JoinResultUnknownError
)

var joinResultNames = map[JoinResult]string{
	JoinResultSuccess:             "Success",
	JoinResultSessionIsFull:       "SessionIsFull",
	JoinResultSessionDoesNotExist: "SessionDoesNotExist",
	JoinResultAlreadyInSession:    "AlreadyInSession",
	JoinResultUnknownError:        "UnknownError",
}

func (r JoinResult) String() string {
	if name, ok := joinResultNames[r]; ok {
		return name
	}
	return "Unknown"
}

// PartyRole is the role a player had in the party it last belonged to.
type PartyRole int

const (
	PartyRoleNone PartyRole = iota
	PartyRoleLeader
	PartyRoleMember
)

func (r PartyRole) String() string {
	switch r {
	case PartyRoleLeader:
		return "Leader"
	case PartyRoleMember:
		return "Member"
	default:
		return "None"
	}
}
