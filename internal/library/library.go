package library

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"

	"dreary/internal/atproto"
	"dreary/internal/ledger"
	"dreary/internal/logging"
	"dreary/internal/lookup"
	"dreary/internal/prompt"
	"dreary/internal/services"
)

// Collection NSIDs.
const (
	CollectionBook      = "dev.dreary.library.book"
	CollectionShelf     = "dev.dreary.library.shelf"
	CollectionShelfItem = "dev.dreary.library.shelfitem"
)

// Repository is the subset of the XRPC client the library needs.
type Repository interface {
	DID() string
	CreateRecord(ctx context.Context, collection, rkey string, record any) (string, error)
	ListAllRecords(ctx context.Context, repo, collection string) ([]atproto.Record, error)
	ApplyWritesBatched(ctx context.Context, writes []atproto.Write, size int, progress atproto.BatchProgress) ([]atproto.WriteResult, error)
}

// Book is a stored book record.
type Book struct {
	URI       string
	Title     string
	Authors   []string
	PageCount int
	CreatedAt string
}

// Label renders "authors - title".
func (b Book) Label() string {
	return strings.Join(b.Authors, ", ") + " - " + b.Title
}

// Shelf is a stored shelf record.
type Shelf struct {
	URI         string
	Name        string
	Description string
	CreatedAt   string
}

// ShelfInput describes a new shelf.
type ShelfInput struct {
	Name        string
	Description string
	IconPath    string
}

// Library writes book, shelf, and shelfitem records.
type Library struct {
	repo      Repository
	uploader  *ledger.Uploader
	prompter  *prompt.Prompter
	batchSize int
	logger    *slog.Logger
}

// New creates a Library. The prompter is used for verification and selection.
func New(repo Repository, uploader *ledger.Uploader, prompter *prompt.Prompter, batchSize int, logger *slog.Logger) *Library {
	return &Library{
		repo:      repo,
		uploader:  uploader,
		prompter:  prompter,
		batchSize: batchSize,
		logger:    logging.NewComponentLogger(logger, "library"),
	}
}

// CreateBook extracts metadata from path, optionally asks the user to verify
// it, uploads the file, and writes the book record.
func (l *Library) CreateBook(ctx context.Context, path string, verify bool) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrValidation, "library", "book", "Input a valid book file path", err)
	}
	md, err := ExtractMetadata(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "library", "metadata", "could not read PDF metadata", err)
	}
	if verify {
		md, err = Verify(l.prompter, md)
		if err != nil {
			return "", err
		}
	}
	if !md.Complete() {
		return "", services.Wrap(services.ErrValidation, "library", "metadata",
			"title and authors are required; run without --yes to enter them", nil)
	}

	blob, err := l.uploader.UploadFile(ctx, path)
	if err != nil {
		return "", err
	}
	uri, err := l.repo.CreateRecord(ctx, CollectionBook, "", bookRecord(md, blob, atproto.Now()))
	if err != nil {
		return "", err
	}
	l.logger.Info("book created",
		logging.String(logging.FieldURI, uri),
		logging.String("title", md.Title))
	return uri, nil
}

func bookRecord(md Metadata, file *atproto.Blob, createdAt string) map[string]any {
	record := make(map[string]any, len(md.Extra)+6)
	for _, f := range md.Extra {
		record[f.Key] = f.Value
	}
	record["$type"] = CollectionBook
	record["title"] = md.Title
	record["authors"] = md.Authors
	if md.PageCount > 0 {
		record["pageCount"] = md.PageCount
	}
	record["file"] = file
	record["createdAt"] = createdAt
	return record
}

type shelfRecord struct {
	Type        string        `json:"$type"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        *atproto.Blob `json:"icon,omitempty"`
	CreatedAt   string        `json:"createdAt"`
}

// CreateShelf writes a shelf record, uploading the optional icon.
func (l *Library) CreateShelf(ctx context.Context, in ShelfInput) (string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", services.Wrap(services.ErrValidation, "library", "shelf", "shelf name is required", nil)
	}
	record := shelfRecord{
		Type:        CollectionShelf,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   atproto.Now(),
	}
	if in.IconPath != "" {
		icon, err := l.uploader.UploadFile(ctx, in.IconPath)
		if err != nil {
			return "", err
		}
		record.Icon = icon
	}
	uri, err := l.repo.CreateRecord(ctx, CollectionShelf, "", record)
	if err != nil {
		return "", err
	}
	l.logger.Info("shelf created", logging.String(logging.FieldURI, uri), logging.String("name", record.Name))
	return uri, nil
}

// PromptShelf asks for shelf details and creates it.
func (l *Library) PromptShelf(ctx context.Context) (string, error) {
	l.prompter.Println()
	l.prompter.Println("Enter shelf data.")
	var in ShelfInput
	var err error
	if in.Name, err = l.prompter.Ask("Name: "); err != nil {
		return "", err
	}
	if in.Description, err = l.prompter.Ask("Description: "); err != nil {
		return "", err
	}
	if in.IconPath, err = l.prompter.Ask("Icon file path: "); err != nil {
		return "", err
	}
	l.prompter.Println()
	return l.CreateShelf(ctx, in)
}

// ListBooks returns every book sorted by label.
func (l *Library) ListBooks(ctx context.Context) ([]Book, error) {
	recs, err := l.repo.ListAllRecords(ctx, l.repo.DID(), CollectionBook)
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(recs))
	for _, rec := range recs {
		book, err := decodeBook(rec)
		if err != nil {
			logging.WarnWithContext(l.logger, "skipping undecodable book", "book_decode_failed",
				logging.String(logging.FieldURI, rec.URI), logging.Error(err))
			continue
		}
		books = append(books, book)
	}
	sort.SliceStable(books, func(i, j int) bool { return books[i].Label() < books[j].Label() })
	return books, nil
}

// decodeBook reads a book record without assuming field types. Verified
// books may carry pageCount as text and authors as a single string.
func decodeBook(rec atproto.Record) (Book, error) {
	doc, err := lookup.Decode(rec.Value)
	if err != nil {
		return Book{}, err
	}
	book := Book{
		URI:       rec.URI,
		Title:     lookup.String(doc, "$.title"),
		Authors:   lookup.Strings(doc, "$.authors[*]"),
		CreatedAt: lookup.String(doc, "$.createdAt"),
	}
	if len(book.Authors) == 0 {
		book.Authors = splitList(lookup.String(doc, "$.authors"))
	}
	if pages, ok := lookup.Float(doc, "$.pageCount"); ok && pages > 0 {
		book.PageCount = int(pages)
	}
	return book, nil
}

// ListShelves returns every shelf in repository order.
func (l *Library) ListShelves(ctx context.Context) ([]Shelf, error) {
	recs, err := l.repo.ListAllRecords(ctx, l.repo.DID(), CollectionShelf)
	if err != nil {
		return nil, err
	}
	shelves := make([]Shelf, 0, len(recs))
	for _, rec := range recs {
		doc, err := lookup.Decode(rec.Value)
		if err != nil {
			continue
		}
		shelves = append(shelves, Shelf{
			URI:         rec.URI,
			Name:        lookup.String(doc, "$.name"),
			Description: lookup.String(doc, "$.description"),
			CreatedAt:   lookup.String(doc, "$.createdAt"),
		})
	}
	return shelves, nil
}

// AddBooksToShelf asks for a shelf and a selection of books, then writes one
// shelfitem per selected book. It returns the number of items written.
func (l *Library) AddBooksToShelf(ctx context.Context) (int, error) {
	shelfURI, err := l.selectShelf(ctx)
	if err != nil || shelfURI == "" {
		return 0, err
	}

	books, err := l.ListBooks(ctx)
	if err != nil {
		return 0, err
	}
	if len(books) == 0 {
		l.prompter.Println("No books yet. Quitting.")
		return 0, nil
	}
	labels := make([]string, len(books))
	for i, book := range books {
		labels[i] = book.Label()
	}
	selected, err := l.prompter.ChooseMany("Comma-delimited book #s: ", labels)
	if err != nil {
		return 0, err
	}
	if len(selected) == 0 {
		l.prompter.Println("No option selected. Quitting.")
		return 0, nil
	}

	l.prompter.Println()
	l.prompter.Println("Selected:")
	bookURIs := make([]string, 0, len(selected))
	for _, idx := range selected {
		bookURIs = append(bookURIs, books[idx].URI)
		l.prompter.Println(labels[idx])
	}
	return l.Shelve(ctx, shelfURI, bookURIs)
}

// Shelve writes shelfitems linking each book to the shelf.
func (l *Library) Shelve(ctx context.Context, shelfURI string, bookURIs []string) (int, error) {
	createdAt := atproto.Now()
	writes := make([]atproto.Write, 0, len(bookURIs))
	for _, bookURI := range bookURIs {
		writes = append(writes, atproto.Create(CollectionShelfItem, map[string]any{
			"$type":     CollectionShelfItem,
			"book":      bookURI,
			"shelf":     shelfURI,
			"createdAt": createdAt,
		}))
	}
	results, err := l.repo.ApplyWritesBatched(ctx, writes, l.batchSize, nil)
	if err != nil {
		return 0, err
	}
	created := len(atproto.CreatedURIs(results))
	l.logger.Info("books added to shelf",
		logging.String("shelf", shelfURI),
		logging.Int(logging.FieldCount, created))
	return created, nil
}

func (l *Library) selectShelf(ctx context.Context) (string, error) {
	shelves, err := l.ListShelves(ctx)
	if err != nil {
		return "", err
	}
	if len(shelves) == 0 {
		l.prompter.Println("No shelves yet.")
		ok, err := l.prompter.Confirm("Create new shelf? ")
		if err != nil || !ok {
			return "", err
		}
		return l.PromptShelf(ctx)
	}
	names := make([]string, len(shelves))
	for i, shelf := range shelves {
		names[i] = shelf.Name
	}
	idx, ok, err := l.prompter.Choose("Shelf #: ", names)
	if err != nil {
		return "", err
	}
	if !ok {
		l.prompter.Println("No option selected. Quitting.")
		return "", nil
	}
	return shelves[idx].URI, nil
}
