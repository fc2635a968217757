package core

import (
	"strings"

	"nftstake/crypto"
)

func formatAddr(addr [20]byte) string {
	return crypto.FormatRaw(addr)
}

func decodeAccount(value string) ([20]byte, error) {
	return crypto.DecodeRaw(strings.TrimSpace(value))
}
