package entities

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is the stored attribute map of one row.
type Item = map[string]types.AttributeValue

// ToItem marshals an entity into its stored attribute map.
func ToItem(v interface{}) (Item, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return item, nil
}

// FromItem unmarshals a stored attribute map into out.
func FromItem(item Item, out interface{}) error {
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("unmarshal %T: %w", out, err)
	}
	return nil
}

// EntityTypeOf returns the EntityType discriminator of item, or "".
func EntityTypeOf(item Item) string {
	if v, ok := item["EntityType"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// StringAttr returns a string attribute of item, or "".
func StringAttr(item Item, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func uniqueStrings(groups ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range groups {
		for _, s := range g {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
