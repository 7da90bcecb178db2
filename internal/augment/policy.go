package augment

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Policy chooses the augmentation sequence for a sample, given the training
// dataset names, the maximum image size, the mode and the image shape.
type Policy func(datasets []string, maxSize int, isTrain bool, height, width int) Augmenter

// DefaultPolicy flips and rotates at random while training and bounds the
// longer side by maxSize in both modes.
func DefaultPolicy(_ []string, maxSize int, isTrain bool, _, _ int) Augmenter {
	var seq Sequence
	if isTrain {
		seq = append(seq, FlipLR{P: 0.5}, FlipUD{P: 0.5}, Rot90{P: 0.5})
	}
	if maxSize > 0 {
		seq = append(seq, ResizeMax{MaxSize: maxSize})
	}
	if len(seq) == 0 {
		return Identity{}
	}
	return seq
}

// IdentityPolicy never changes a sample
func IdentityPolicy([]string, int, bool, int, int) Augmenter {
	return Identity{}
}

// ErrUnknownPolicy is returned for a policy name PolicyByName does not know
var ErrUnknownPolicy = errors.New("unknown augmentation policy")

// PolicyByName resolves a configured policy name: "default" or "identity"
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return DefaultPolicy, nil
	case "identity", "none":
		return IdentityPolicy, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// PolicyRegistry maps dataset names to policies. Names are compared
// case-insensitively.
type PolicyRegistry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	fallback Policy
}

// NewPolicyRegistry creates a registry that uses fallback for unknown
// datasets. A nil fallback means DefaultPolicy.
func NewPolicyRegistry(fallback Policy) *PolicyRegistry {
	if fallback == nil {
		fallback = DefaultPolicy
	}
	return &PolicyRegistry{
		policies: make(map[string]Policy),
		fallback: fallback,
	}
}

// Register sets the policy for a dataset, replacing any previous one
func (r *PolicyRegistry) Register(dataset string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[strings.ToLower(dataset)] = p
}

// Policy implements the Policy signature: the first dataset in datasets
// with a registered policy decides, otherwise the fallback does.
func (r *PolicyRegistry) Policy(datasets []string, maxSize int, isTrain bool, height, width int) Augmenter {
	r.mu.RLock()
	p := r.fallback
	for _, name := range datasets {
		if found, ok := r.policies[strings.ToLower(name)]; ok {
			p = found
			break
		}
	}
	r.mu.RUnlock()
	return p(datasets, maxSize, isTrain, height, width)
}
