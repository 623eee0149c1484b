package chain

import (
	"errors"
	"fmt"
)

// Family is a blockchain ecosystem with its own address format and signing scheme.
type Family string

const (
	Evm    Family = "evm"
	Solana Family = "solana"
	Ton    Family = "ton"
)

var ErrUnknownFamily = errors.New("unknown blockchain family")

// Families lists every supported family.
func Families() []Family {
	return []Family{Evm, Solana, Ton}
}

func ParseFamily(s string) (Family, error) {
	switch Family(s) {
	case Evm, Solana, Ton:
		return Family(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}

// Namespace is the CAIP-2 namespace of the family.
func (f Family) Namespace() string {
	switch f {
	case Evm:
		return "eip155"
	case Solana:
		return "solana"
	case Ton:
		return "ton"
	}
	return ""
}

// FamilyFromNamespace is the inverse of Namespace.
func FamilyFromNamespace(ns string) (Family, error) {
	switch ns {
	case "eip155":
		return Evm, nil
	case "solana":
		return Solana, nil
	case "ton":
		return Ton, nil
	}
	return "", fmt.Errorf("%w: namespace %q", ErrUnknownFamily, ns)
}

func (f Family) String() string {
	return string(f)
}

// UnmarshalText rejects unknown families.
func (f *Family) UnmarshalText(text []byte) error {
	parsed, err := ParseFamily(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
