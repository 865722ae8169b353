package library

import (
	"fmt"
	"strconv"
	"strings"

	"dreary/internal/prompt"
)

// Verify shows the metadata as a numbered list and lets the user edit fields
// by number, add fields with "+", and accept with an empty answer once title
// and authors are present.
func Verify(p *prompt.Prompter, md Metadata) (Metadata, error) {
	for {
		p.Println()
		p.Println("--- Metadata ---")
		keys := fieldKeys(md)
		for i, key := range keys {
			value := fieldValue(md, key)
			if (key == "title" || key == "authors") && value == "" {
				p.Printf("%d) %s: %s\n", i+1, p.Highlight(key), value)
				continue
			}
			p.Printf("%d) %s: %s\n", i+1, key, value)
		}

		p.Println()
		p.Println("Enter the number of a field to edit, or press Enter to continue.")
		choice, err := p.Ask("Edit field #: ")
		if err != nil {
			return md, err
		}

		switch {
		case choice == "+":
			name, err := p.Ask("Enter new field: ")
			if err != nil {
				return md, err
			}
			if name == "" {
				continue
			}
			value, err := p.Ask(fmt.Sprintf("Enter new value for '%s': ", name))
			if err != nil {
				return md, err
			}
			md = setField(md, name, value)
		case choice == "":
			if !md.Complete() {
				p.Println(p.Highlight("Please enter values for required fields (title and authors)."))
				continue
			}
			p.Println()
			return md, nil
		default:
			idx, ok := prompt.ParseIndex(choice, len(keys))
			if !ok {
				p.Println(p.Highlight("Invalid selection. Try again."))
				continue
			}
			key := keys[idx]
			value, err := p.Ask(fmt.Sprintf("Enter new value for '%s': ", key))
			if err != nil {
				return md, err
			}
			md = setField(md, key, value)
		}
	}
}

func fieldKeys(md Metadata) []string {
	keys := []string{"title", "authors"}
	if md.PageCount > 0 {
		keys = append(keys, "pageCount")
	}
	for _, f := range md.Extra {
		keys = append(keys, f.Key)
	}
	return keys
}

func fieldValue(md Metadata, key string) string {
	switch key {
	case "title":
		return md.Title
	case "authors":
		return strings.Join(md.Authors, ", ")
	case "pageCount":
		return strconv.Itoa(md.PageCount)
	}
	for _, f := range md.Extra {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

func setField(md Metadata, key, value string) Metadata {
	value = strings.TrimSpace(value)
	switch key {
	case "title":
		md.Title = value
		return md
	case "authors":
		md.Authors = splitList(value)
		return md
	case "pageCount":
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			md.PageCount = n
		}
		return md
	}
	for i, f := range md.Extra {
		if f.Key == key {
			md.Extra[i].Value = value
			return md
		}
	}
	md.Extra = append(md.Extra, Field{Key: key, Value: value})
	return md
}
