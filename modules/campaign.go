package modules

/*
Campaign holds the ordered list of milestones of one fundraising project, the committee allowed to
release them and the number of votes a release requires.

Donations are only accepted by the active milestone, the first one not yet released. Committee
members vote once per milestone; the vote reaching the threshold releases the milestone and pays
its accumulated amount to the service provider in the same transaction.
Nothing caps a milestone at its target: an over-funded milestone keeps the surplus and pays it out.

Each new block a new campaign gets generated
*/

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownMilestone = errors.New("milestone does not exist")
	ErrNotActive        = errors.New("milestone is not active")
	ErrReleased         = errors.New("milestone already released")
	ErrAmount           = errors.New("donation amount must be positive")
	ErrNotMember        = errors.New("caller is not a committee member")
	ErrAlreadyVoted     = errors.New("already voted for this milestone")
	ErrReplayed         = errors.New("transaction already processed")
)

// ------------------------------------------------------------------------------------------------------------------- //
// CAMPAIGN

type Campaign struct {
	Milestones []*Milestone
	Threshold  uint64
	Committee  map[common.Address]bool
	Votes      map[string]bool
	Donations  []*Donation
	Payouts    map[common.Address]*big.Int
	Processed  map[string]bool
}

func NewCampaign(old *Campaign) *Campaign { // called every new block
	campaign := &Campaign{
		Threshold: old.Threshold,
		Committee: make(map[common.Address]bool),
		Votes:     make(map[string]bool),
		Payouts:   make(map[common.Address]*big.Int),
		Processed: make(map[string]bool),
	}
	for _, milestone := range old.Milestones {
		campaign.Milestones = append(campaign.Milestones, milestone.copy())
	}
	for member, authorized := range old.Committee {
		campaign.Committee[member] = authorized
	}
	for vote, cast := range old.Votes {
		campaign.Votes[vote] = cast
	}
	for _, donation := range old.Donations {
		campaign.Donations = append(campaign.Donations, donation)
	}
	for provider, amount := range old.Payouts {
		campaign.Payouts[provider] = new(big.Int).Set(amount)
	}
	for tx, done := range old.Processed {
		campaign.Processed[tx] = done
	}
	return campaign
}

func (campaign *Campaign) Validate() error {
	if campaign.Threshold == 0 {
		return errors.New("voting threshold must be at least 1")
	}
	for i, milestone := range campaign.Milestones {
		if milestone.TargetAmount == nil || milestone.TargetAmount.Sign() < 0 {
			return errors.New("milestone " + strconv.Itoa(i) + " has a negative target")
		}
	}
	return nil
}

func (campaign *Campaign) Hash() []byte {
	var sum []byte
	if campaign == nil {
		return sum
	}
	for _, milestone := range campaign.Milestones {
		sum = append(sum, milestone.Hash()...)
	}
	sum = append(sum, strconv.FormatUint(campaign.Threshold, 10)...)
	for _, vote := range sortedKeys(campaign.Votes) {
		sum = append(sum, vote...)
	}
	providers := make([]common.Address, 0, len(campaign.Payouts))
	for provider := range campaign.Payouts {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Hex() < providers[j].Hex() })
	for _, provider := range providers {
		sum = append(sum, provider.Bytes()...)
		sum = append(sum, campaign.Payouts[provider].Bytes()...)
	}
	hash := sha256.Sum256(sum)
	return hash[:]
}

// ActiveMilestone returns the index of the first unreleased milestone.
func (campaign *Campaign) ActiveMilestone() (uint64, bool) {
	for i, milestone := range campaign.Milestones {
		if !milestone.Released {
			return uint64(i), true
		}
	}
	return 0, false
}

func (campaign *Campaign) IsMember(address common.Address) bool {
	return campaign.Committee[address]
}

func (campaign *Campaign) HasVoted(milestoneID uint64, member common.Address) bool {
	return campaign.Votes[voteKey(milestoneID, member)]
}

func (campaign *Campaign) Milestone(milestoneID uint64) (*Milestone, error) {
	if milestoneID >= uint64(len(campaign.Milestones)) {
		return nil, ErrUnknownMilestone
	}
	return campaign.Milestones[milestoneID], nil
}

func (campaign *Campaign) Donate(donor common.Address, milestoneID uint64, amount *big.Int) error { // called at donateTx
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmount
	}
	milestone, err := campaign.Milestone(milestoneID)
	if err != nil {
		return err
	}
	if milestone.Released {
		return ErrReleased
	}
	if active, _ := campaign.ActiveMilestone(); active != milestoneID {
		return ErrNotActive
	}
	milestone.CurrentAmount = new(big.Int).Add(milestone.CurrentAmount, amount)
	campaign.Donations = append(campaign.Donations, &Donation{
		Donor:       donor,
		MilestoneID: milestoneID,
		Amount:      new(big.Int).Set(amount),
	})
	return nil
}

func (campaign *Campaign) Vote(member common.Address, milestoneID uint64) error { // called at voteTx
	if !campaign.IsMember(member) {
		return ErrNotMember
	}
	milestone, err := campaign.Milestone(milestoneID)
	if err != nil {
		return err
	}
	if milestone.Released {
		return ErrReleased
	}
	if active, _ := campaign.ActiveMilestone(); active != milestoneID {
		return ErrNotActive
	}
	if campaign.HasVoted(milestoneID, member) {
		return ErrAlreadyVoted
	}
	campaign.Votes[voteKey(milestoneID, member)] = true
	milestone.VoteCount++
	if milestone.VoteCount >= campaign.Threshold {
		campaign.release(milestone)
	}
	return nil
}

func (campaign *Campaign) release(milestone *Milestone) {
	milestone.Released = true
	paid, ok := campaign.Payouts[milestone.ServiceProvider]
	if !ok {
		paid = new(big.Int)
	}
	campaign.Payouts[milestone.ServiceProvider] = new(big.Int).Add(paid, milestone.CurrentAmount)
}

// MarkProcessed records a transaction digest and reports whether it was seen before.
func (campaign *Campaign) MarkProcessed(digest []byte) error {
	key := hex.EncodeToString(digest)
	if campaign.Processed[key] {
		return ErrReplayed
	}
	campaign.Processed[key] = true
	return nil
}

func voteKey(milestoneID uint64, member common.Address) string {
	return strconv.FormatUint(milestoneID, 10) + "/" + member.Hex()
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key, ok := range set {
		if ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// ------------------------------------------------------------------------------------------------------------------- //
// MILESTONE

type Milestone struct {
	Description     string
	ServiceProvider common.Address
	TargetAmount    *big.Int
	CurrentAmount   *big.Int
	Released        bool
	VoteCount       uint64
}

func NewMilestone(description string, provider common.Address, target *big.Int) *Milestone {
	return &Milestone{
		Description:     description,
		ServiceProvider: provider,
		TargetAmount:    new(big.Int).Set(target),
		CurrentAmount:   new(big.Int),
	}
}

func (milestone *Milestone) copy() *Milestone {
	return &Milestone{
		Description:     milestone.Description,
		ServiceProvider: milestone.ServiceProvider,
		TargetAmount:    new(big.Int).Set(milestone.TargetAmount),
		CurrentAmount:   new(big.Int).Set(milestone.CurrentAmount),
		Released:        milestone.Released,
		VoteCount:       milestone.VoteCount,
	}
}

func (milestone *Milestone) Hash() []byte {
	sum := append([]byte(milestone.Description), milestone.ServiceProvider.Bytes()...)
	sum = append(sum, milestone.TargetAmount.Bytes()...)
	sum = append(sum, milestone.CurrentAmount.Bytes()...)
	sum = append(sum, strconv.FormatBool(milestone.Released)...)
	sum = append(sum, strconv.FormatUint(milestone.VoteCount, 10)...)
	hash := sha256.Sum256(sum)
	return hash[:]
}

// ------------------------------------------------------------------------------------------------------------------- //
// DONATION

type Donation struct {
	Donor       common.Address
	MilestoneID uint64
	Amount      *big.Int
}
