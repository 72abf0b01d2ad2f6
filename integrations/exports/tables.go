package exports

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"logbook/core/types"
)

// row is one entity rendered for both the CSV and Parquet writers.
type row struct {
	fields  []string
	parquet any
}

type table struct {
	columns []string
	// proto is a pointer to the Parquet row struct used to derive the schema.
	proto  any
	decode func(raw json.RawMessage) (row, error)
}

type accountRow struct {
	ID      string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Balance string `parquet:"name=balance, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type contentRow struct {
	ID             string   `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Author         string   `parquet:"name=author, type=BYTE_ARRAY, convertedtype=UTF8"`
	Body           string   `parquet:"name=body, type=BYTE_ARRAY"`
	FirstContainer string   `parquet:"name=first_container, type=BYTE_ARRAY, convertedtype=UTF8"`
	Containers     []string `parquet:"name=containers, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REPEATED"`
	ContainerCount int64    `parquet:"name=container_count, type=INT64"`
	CreatedAt      int64    `parquet:"name=created_at, type=INT64"`
}

type logbookRow struct {
	ID               string   `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Owner            string   `parquet:"name=owner, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title            string   `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Description      string   `parquet:"name=description, type=BYTE_ARRAY, convertedtype=UTF8"`
	ForkPrice        string   `parquet:"name=fork_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	Parent           string   `parquet:"name=parent, type=BYTE_ARRAY, convertedtype=UTF8"`
	Publications     []string `parquet:"name=publications, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REPEATED"`
	PublicationCount int64    `parquet:"name=publication_count, type=INT64"`
	ForkCount        int64    `parquet:"name=fork_count, type=INT64"`
	DonationCount    int64    `parquet:"name=donation_count, type=INT64"`
	TransferCount    int64    `parquet:"name=transfer_count, type=INT64"`
	CreatedAt        int64    `parquet:"name=created_at, type=INT64"`
	LastPublishedAt  int64    `parquet:"name=last_published_at, type=INT64"`
	ExternalURI      string   `parquet:"name=external_uri, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type publicationRow struct {
	ID              string   `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Content         string   `parquet:"name=content, type=BYTE_ARRAY, convertedtype=UTF8"`
	OriginContainer string   `parquet:"name=origin_container, type=BYTE_ARRAY, convertedtype=UTF8"`
	Containers      []string `parquet:"name=containers, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REPEATED"`
	ContainerCount  int64    `parquet:"name=container_count, type=INT64"`
	CreatedAt       int64    `parquet:"name=created_at, type=INT64"`
	TxHash          string   `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type donationRow struct {
	ID        string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Container string `parquet:"name=container, type=BYTE_ARRAY, convertedtype=UTF8"`
	Donor     string `parquet:"name=donor, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount    string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt int64  `parquet:"name=created_at, type=INT64"`
	TxHash    string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type paymentRow struct {
	ID        string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Container string `parquet:"name=container, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sender    string `parquet:"name=sender, type=BYTE_ARRAY, convertedtype=UTF8"`
	Recipient string `parquet:"name=recipient, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount    string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Purpose   string `parquet:"name=purpose, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt int64  `parquet:"name=created_at, type=INT64"`
	TxHash    string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type forkRow struct {
	ID         string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	From       string `parquet:"name=from, type=BYTE_ARRAY, convertedtype=UTF8"`
	To         string `parquet:"name=to, type=BYTE_ARRAY, convertedtype=UTF8"`
	CutContent string `parquet:"name=cut_content, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount     string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  int64  `parquet:"name=created_at, type=INT64"`
	TxHash     string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
}

var tables = map[string]table{
	types.KindAccount: {
		columns: []string{"id", "balance"},
		proto:   new(accountRow),
		decode: func(raw json.RawMessage) (row, error) {
			var a types.Account
			if err := json.Unmarshal(raw, &a); err != nil {
				return row{}, err
			}
			r := &accountRow{ID: a.ID, Balance: amount(a.Balance)}
			return row{fields: []string{r.ID, r.Balance}, parquet: r}, nil
		},
	},
	types.KindContent: {
		columns: []string{"id", "author", "body", "first_container", "containers", "container_count", "created_at"},
		proto:   new(contentRow),
		decode: func(raw json.RawMessage) (row, error) {
			var c types.Content
			if err := json.Unmarshal(raw, &c); err != nil {
				return row{}, err
			}
			r := &contentRow{
				ID:             c.ID,
				Author:         c.Author,
				Body:           string(c.Body),
				FirstContainer: c.FirstContainer,
				Containers:     c.Containers,
				ContainerCount: int64(c.ContainerCount),
				CreatedAt:      int64(c.CreatedAt),
			}
			return row{fields: []string{
				r.ID, r.Author, r.Body, r.FirstContainer, list(r.Containers), count(c.ContainerCount), count(c.CreatedAt),
			}, parquet: r}, nil
		},
	},
	types.KindLogbook: {
		columns: []string{
			"id", "owner", "title", "description", "fork_price", "parent", "publications",
			"publication_count", "fork_count", "donation_count", "transfer_count",
			"created_at", "last_published_at", "external_uri",
		},
		proto: new(logbookRow),
		decode: func(raw json.RawMessage) (row, error) {
			var l types.Logbook
			if err := json.Unmarshal(raw, &l); err != nil {
				return row{}, err
			}
			r := &logbookRow{
				ID:               l.ID,
				Owner:            l.Owner,
				Title:            l.Title,
				Description:      l.Description,
				ForkPrice:        amount(l.ForkPrice),
				Parent:           l.Parent,
				Publications:     l.Publications,
				PublicationCount: int64(l.PublicationCount),
				ForkCount:        int64(l.ForkCount),
				DonationCount:    int64(l.DonationCount),
				TransferCount:    int64(l.TransferCount),
				CreatedAt:        int64(l.CreatedAt),
				LastPublishedAt:  int64(l.LastPublishedAt),
				ExternalURI:      l.ExternalURI,
			}
			return row{fields: []string{
				r.ID, r.Owner, r.Title, r.Description, r.ForkPrice, r.Parent, list(r.Publications),
				count(l.PublicationCount), count(l.ForkCount), count(l.DonationCount), count(l.TransferCount),
				count(l.CreatedAt), count(l.LastPublishedAt), r.ExternalURI,
			}, parquet: r}, nil
		},
	},
	types.KindPublication: {
		columns: []string{"id", "content", "origin_container", "containers", "container_count", "created_at", "tx_hash"},
		proto:   new(publicationRow),
		decode: func(raw json.RawMessage) (row, error) {
			var p types.Publication
			if err := json.Unmarshal(raw, &p); err != nil {
				return row{}, err
			}
			r := &publicationRow{
				ID:              p.ID,
				Content:         p.Content,
				OriginContainer: p.OriginContainer,
				Containers:      p.Containers,
				ContainerCount:  int64(p.ContainerCount),
				CreatedAt:       int64(p.CreatedAt),
				TxHash:          p.TxHash,
			}
			return row{fields: []string{
				r.ID, r.Content, r.OriginContainer, list(r.Containers), count(p.ContainerCount), count(p.CreatedAt), r.TxHash,
			}, parquet: r}, nil
		},
	},
	types.KindDonation: {
		columns: []string{"id", "container", "donor", "amount", "created_at", "tx_hash"},
		proto:   new(donationRow),
		decode: func(raw json.RawMessage) (row, error) {
			var d types.Donation
			if err := json.Unmarshal(raw, &d); err != nil {
				return row{}, err
			}
			r := &donationRow{ID: d.ID, Container: d.Container, Donor: d.Donor, Amount: amount(d.Amount), CreatedAt: int64(d.CreatedAt), TxHash: d.TxHash}
			return row{fields: []string{r.ID, r.Container, r.Donor, r.Amount, count(d.CreatedAt), r.TxHash}, parquet: r}, nil
		},
	},
	types.KindPayment: {
		columns: []string{"id", "container", "sender", "recipient", "amount", "purpose", "created_at", "tx_hash"},
		proto:   new(paymentRow),
		decode: func(raw json.RawMessage) (row, error) {
			var p types.Payment
			if err := json.Unmarshal(raw, &p); err != nil {
				return row{}, err
			}
			r := &paymentRow{
				ID:        p.ID,
				Container: p.Container,
				Sender:    p.Sender,
				Recipient: p.Recipient,
				Amount:    amount(p.Amount),
				Purpose:   string(p.Purpose),
				CreatedAt: int64(p.CreatedAt),
				TxHash:    p.TxHash,
			}
			return row{fields: []string{r.ID, r.Container, r.Sender, r.Recipient, r.Amount, r.Purpose, count(p.CreatedAt), r.TxHash}, parquet: r}, nil
		},
	},
	types.KindFork: {
		columns: []string{"id", "from", "to", "cut_content", "amount", "created_at", "tx_hash"},
		proto:   new(forkRow),
		decode: func(raw json.RawMessage) (row, error) {
			var f types.Fork
			if err := json.Unmarshal(raw, &f); err != nil {
				return row{}, err
			}
			r := &forkRow{ID: f.ID, From: f.From, To: f.To, CutContent: f.CutContent, Amount: amount(f.Amount), CreatedAt: int64(f.CreatedAt), TxHash: f.TxHash}
			return row{fields: []string{r.ID, r.From, r.To, r.CutContent, r.Amount, count(f.CreatedAt), r.TxHash}, parquet: r}, nil
		},
	},
}

func lookup(kind string) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("exports: kind %q is not exportable", kind)
	}
	return t, nil
}

func amount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func count(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// list joins ids for flat formats; ids never contain the separator.
func list(ids []string) string {
	return strings.Join(ids, ";")
}
