// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"errors"
	"fmt"
)

var ErrInvalidParams = errors.New("invalid matchmaking params")

var (
	ValidationErrorMissingController      = fmt.Errorf("%w: controller id cannot be empty", ErrInvalidParams)
	ValidationErrorNegativeRange          = fmt.Errorf("%w: elo range and search step cannot be negative", ErrInvalidParams)
	ValidationErrorMaxSearchAttempts      = fmt.Errorf("%w: max search attempts must be positive", ErrInvalidParams)
	ValidationErrorSpecificSessionTarget  = fmt.Errorf("%w: specific session query needs a target id", ErrInvalidParams)
	ValidationErrorPredicateKey           = fmt.Errorf("%w: search predicate key cannot be empty", ErrInvalidParams)
	ValidationErrorHostCapacity           = fmt.Errorf("%w: host params need a positive capacity", ErrInvalidParams)
	ValidationErrorSessionTag             = fmt.Errorf("%w: unknown session tag", ErrInvalidParams)
	ValidationErrorSessionToJoin          = fmt.Errorf("%w: join only matchmaking needs a valid session", ErrInvalidParams)
	ValidationErrorReservationOwner       = errors.New("reservation owner cannot be empty")
	ValidationErrorReservationEmpty       = errors.New("reservation must have at least one member")
	ValidationErrorReservationMember      = errors.New("reservation member id cannot be empty")
	ValidationErrorReservationDuplicateID = errors.New("reservation lists the same member twice")
)

var validationErrorCodeMap = map[error]int{
	ValidationErrorMissingController:      520101,
	ValidationErrorNegativeRange:          520102,
	ValidationErrorMaxSearchAttempts:      520103,
	ValidationErrorSpecificSessionTarget:  520104,
	ValidationErrorPredicateKey:           520105,
	ValidationErrorHostCapacity:           520106,
	ValidationErrorSessionTag:             520107,
	ValidationErrorSessionToJoin:          520108,
	ValidationErrorReservationOwner:       520201,
	ValidationErrorReservationEmpty:       520202,
	ValidationErrorReservationMember:      520203,
	ValidationErrorReservationDuplicateID: 520204,
}

// ValidationErrorCode returns a code for the error.
// It returns 20002 if the error is not registered in the map.
func ValidationErrorCode(err error) int {
	code, ok := validationErrorCodeMap[err]
	if !ok {
		return 20002
	}
	return code
}
