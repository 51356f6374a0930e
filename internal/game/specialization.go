// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package game

import (
	"strings"

	"github.com/samber/oops"
)

// SpecializationMinLevel is the level gate for the one-time choice.
const SpecializationMinLevel = 5

// Specialization is a permanent, class-constrained refinement of a
// character. Each class has exactly two valid options.
type Specialization string

// Specializations by class.
const (
	SpecBerserker    Specialization = "berserker"    // warrior
	SpecGuardian     Specialization = "guardian"     // warrior
	SpecPyromancer   Specialization = "pyromancer"   // mage
	SpecChronomancer Specialization = "chronomancer" // mage
	SpecCrusader     Specialization = "crusader"     // paladin
	SpecOathkeeper   Specialization = "oathkeeper"   // paladin
	SpecAssassin     Specialization = "assassin"     // rogue
	SpecShadowdancer Specialization = "shadowdancer" // rogue
)

// classSpecializations is the fixed bipartite class -> option pair mapping.
var classSpecializations = map[Class][2]Specialization{
	ClassWarrior: {SpecBerserker, SpecGuardian},
	ClassMage:    {SpecPyromancer, SpecChronomancer},
	ClassPaladin: {SpecCrusader, SpecOathkeeper},
	ClassRogue:   {SpecAssassin, SpecShadowdancer},
}

// SpecializationsFor returns the two valid specializations for a class.
func SpecializationsFor(class Class) [2]Specialization {
	return classSpecializations[class]
}

// ParseSpecialization validates a wire-level specialization string.
func ParseSpecialization(s string) (Specialization, error) {
	spec := Specialization(strings.ToLower(s))
	for _, pair := range classSpecializations {
		if spec == pair[0] || spec == pair[1] {
			return spec, nil
		}
	}
	return "", oops.Code("SPECIALIZATION_UNKNOWN").
		With("specialization", s).
		Errorf("unknown specialization %q", s)
}

// ValidFor reports whether the specialization is one of the two options
// for the given class.
func (s Specialization) ValidFor(class Class) bool {
	pair := classSpecializations[class]
	return s == pair[0] || s == pair[1]
}
