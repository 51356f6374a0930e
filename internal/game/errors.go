// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package game

import "errors"

// ErrNotFound is returned when a requested character does not exist.
var ErrNotFound = errors.New("not found")

// ErrNameTaken is returned when a character name is already in use.
var ErrNameTaken = errors.New("character name already exists")

// ErrNotOwner is returned when a character belongs to a different account.
var ErrNotOwner = errors.New("character does not belong to this account")

// ErrSpecializationSet is returned when a character already has a
// specialization. The choice is write-once.
var ErrSpecializationSet = errors.New("specialization already chosen")
