package bundler

import (
	"github.com/everFinance/goar/types"
	"github.com/everFinance/goar/utils"
	"github.com/pkg/errors"
)

type Tag = types.Tag

// DataItem is a signed ANS-104 data item as accepted by bundling services.
type DataItem struct {
	item types.BundleItem
}

// CreateDataItem builds and signs a data item with no target and no anchor.
func CreateDataItem(data []byte, tags []Tag, signer *Signer) (*DataItem, error) {
	if tags == nil {
		tags = []Tag{}
	}
	item, err := signer.items.CreateAndSignItem(data, "", "", tags)
	if err != nil {
		return nil, errors.Wrap(err, "signing data item")
	}
	return &DataItem{item: item}, nil
}

// ParseDataItem decodes the ANS-104 binary form.
func ParseDataItem(raw []byte) (*DataItem, error) {
	item, err := utils.DecodeBundleItem(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decoding data item")
	}
	return &DataItem{item: *item}, nil
}

func (d *DataItem) ID() string {
	return d.item.Id
}

func (d *DataItem) SignatureType() int {
	return d.item.SignatureType
}

func (d *DataItem) Raw() ([]byte, error) {
	if len(d.item.ItemBinary) == 0 {
		return nil, errors.New("data item has no binary form")
	}
	return d.item.ItemBinary, nil
}

func (d *DataItem) Data() ([]byte, error) {
	return utils.Base64Decode(d.item.Data)
}

func (d *DataItem) OwnerAddress() string {
	owner, err := utils.Base64Decode(d.item.Owner)
	if err != nil {
		return ""
	}
	return OwnerToAddress(owner)
}

func (d *DataItem) Tags() []Tag {
	return d.item.Tags
}

func (d *DataItem) Tag(name string) (string, bool) {
	for _, t := range d.item.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// Verify checks the item's signature against its owner.
func (d *DataItem) Verify() error {
	return utils.VerifyBundleItem(d.item)
}
