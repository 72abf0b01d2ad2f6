package types

import "github.com/holiman/uint256"

// Content is an authored log body, identified by its content hash. Author,
// body and creation time never change once recorded.
type Content struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Body   []byte `json:"body"`
	// FirstContainer is the logbook of the earliest publish; empty until then.
	FirstContainer string   `json:"firstContainer,omitempty"`
	Containers     []string `json:"containers"`
	ContainerCount uint64   `json:"containerCount"`
	CreatedAt      uint64   `json:"createdAt"`
}

// Logbook is the ownable container of publications.
type Logbook struct {
	ID               string       `json:"id"`
	Owner            string       `json:"owner"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	ForkPrice        *uint256.Int `json:"forkPrice"`
	Parent           string       `json:"parent,omitempty"`
	Publications     []string     `json:"publications"`
	PublicationCount uint64       `json:"publicationCount"`
	ForkCount        uint64       `json:"forkCount"`
	DonationCount    uint64       `json:"donationCount"`
	TransferCount    uint64       `json:"transferCount"`
	CreatedAt        uint64       `json:"createdAt"`
	// LastPublishedAt is zero until the first publish.
	LastPublishedAt uint64 `json:"lastPublishedAt,omitempty"`
	ExternalURI     string `json:"externalURI"`
}

// Publication links one content to the logbook it was published in. Containers
// lists the fork children that inherited it.
type Publication struct {
	ID              string   `json:"id"`
	Content         string   `json:"content"`
	OriginContainer string   `json:"originContainer"`
	Containers      []string `json:"containers"`
	ContainerCount  uint64   `json:"containerCount"`
	CreatedAt       uint64   `json:"createdAt"`
	TxHash          string   `json:"txHash"`
}

type Donation struct {
	ID        string       `json:"id"`
	Container string       `json:"container"`
	Donor     string       `json:"donor"`
	Amount    *uint256.Int `json:"amount"`
	CreatedAt uint64       `json:"createdAt"`
	TxHash    string       `json:"txHash"`
}

// PaymentPurpose mirrors the contract's royalty purpose enum.
type PaymentPurpose string

const (
	PurposeFork   PaymentPurpose = "Fork"
	PurposeDonate PaymentPurpose = "Donate"
)

// PurposeFromCode maps the on-chain enum value.
func PurposeFromCode(code uint8) PaymentPurpose {
	if code == 0 {
		return PurposeFork
	}
	return PurposeDonate
}

type Payment struct {
	ID        string         `json:"id"`
	Container string         `json:"container"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Amount    *uint256.Int   `json:"amount"`
	Purpose   PaymentPurpose `json:"purpose"`
	CreatedAt uint64         `json:"createdAt"`
	TxHash    string         `json:"txHash"`
}

type Fork struct {
	ID         string       `json:"id"`
	From       string       `json:"from"`
	To         string       `json:"to"`
	CutContent string       `json:"cutContent"`
	Amount     *uint256.Int `json:"amount"`
	CreatedAt  uint64       `json:"createdAt"`
	TxHash     string       `json:"txHash"`
}

// AppendUnique appends id unless it is already present. The boolean reports
// whether the slice changed.
func AppendUnique(list []string, id string) ([]string, bool) {
	for _, existing := range list {
		if existing == id {
			return list, false
		}
	}
	return append(list, id), true
}
