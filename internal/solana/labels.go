package solana

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fluidspend/internal/core"
)

// Labels maps counterparty addresses to team names.
type Labels map[string]string

var knownCounterparties = Labels{
	"5AZYLkiU4SPYDeRMcPbPRPmiz2Ny85jWFeV4xmQsVBNo": "Fluid Team",
	"HUBLSmfDxXxxzgg4KM6Q5onHVwBG5KeKjeA2BnvE5D9r": "Fluid Team",
	"7b1zZUuae2F56e66GqpkKe1Tq1BK2ePRRuGGr8ahe2JB": "JUP Team",
	"FH9bgRZrEGFA1d4859wSBdNnHgtU5ZDqFUPccHDnYQ3p": "Maple",
	"DVBfCpHoAtVgcVLFHyUgXaWg5ZaKU8CkekXu23ZD4iod": "Gauntlet",
	"fr6yQkDmWy6R6pecbUsxXaw6EvRJznZ2HsK5frQgud8":  "USDG Team",
	"8sjM83a4u2M8YZYshLGKzYxh1VHFfbgtaytwaoEg4bUJ": "Jito Team",
	"8JmDPG5BFQ6gpUPJV9xBixYJLqTKCSNotkXksTmNsQfj": "Sky Team",
	"62SJTxjWbyaPei1HPW9mFX7KMYCEp7Z9zwiL4hGa8WQv": "LBTC Team",
	"EeQmNqm1RcQnee8LTyx6ccVG9FnR8TezQuw2JXq2LC1T": "Sanctum INF Team",
	"41zCUJsKk6cMB94DDtm99qWmyMZfp4GkAhhuz4xTwePu": "PST Team",
	"JANAjsZKJhtHF9PUF8cwjVp5oQjdcHYiGiFgc8TWQjp2": "Binance Campaign",
	"3ssDYFbTpACkshGeYHMBovxB4aE2G6fbZNeVChi85J1k": "Binance Campaign",
	"7s1da8DduuBFqGra5bJBjpnvL5E9mGzCuMk1Qkh4or2Z": "Liquidity Layer",
}

// DefaultLabels returns a copy of the built-in address table.
func DefaultLabels() Labels {
	out := make(Labels, len(knownCounterparties))
	for k, v := range knownCounterparties {
		out[k] = v
	}
	return out
}

// Lookup returns the team for addr, or core.UnknownTeam.
func (l Labels) Lookup(addr string) string {
	if team, ok := l[addr]; ok && team != "" {
		return team
	}
	return core.UnknownTeam
}

type labelsFile struct {
	Labels map[string]string `yaml:"labels"`
}

// LoadLabels returns the built-in table overlaid with the entries of the YAML
// file at path. An empty path yields the built-in table.
//
//	labels:
//	  5AZYLkiU4SPYDeRMcPbPRPmiz2Ny85jWFeV4xmQsVBNo: Fluid Team
func LoadLabels(path string) (Labels, error) {
	labels := DefaultLabels()
	if path == "" {
		return labels, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	var f labelsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: parse labels file %s: %v", core.ErrConfig, path, err)
	}
	for addr, team := range f.Labels {
		if addr == "" || team == "" {
			return nil, fmt.Errorf("%w: labels file %s has an empty address or label", core.ErrConfig, path)
		}
		labels[addr] = team
	}
	return labels, nil
}
