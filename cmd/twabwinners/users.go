package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// loadUsers merges the --users list with the addresses in path, one per line.
// Blank lines and lines starting with # are skipped; duplicates keep their
// first position.
func loadUsers(list []string, path string) ([]common.Address, error) {
	var users []common.Address
	seen := make(map[common.Address]bool)

	add := func(source, value string) error {
		value = strings.TrimSpace(value)
		if !common.IsHexAddress(value) {
			return fmt.Errorf("%s: invalid user address %q", source, value)
		}
		addr := common.HexToAddress(value)
		if !seen[addr] {
			seen[addr] = true
			users = append(users, addr)
		}
		return nil
	}

	for _, u := range list {
		if err := add("--users", u); err != nil {
			return nil, err
		}
	}
	if path == "" {
		return users, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open users file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := add(fmt.Sprintf("%s:%d", path, line), text); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	return users, nil
}
