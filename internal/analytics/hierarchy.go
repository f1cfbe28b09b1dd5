package analytics

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultHierarchyCategory = "Uncategorized"
	defaultLineItemLabel     = "Line Item"
)

// nodeNamespace seeds the deterministic node identifiers.
var nodeNamespace = uuid.MustParse("6f1c3f0e-4b7a-5d21-9a3e-2c8b7d15e940")

// Node is one row of the category → subcategory → line item table.
type Node struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          Kind            `json:"kind"`
	Source        string          `json:"source,omitempty"`
	FromDate      *time.Time      `json:"fromDate"`
	ToDate        *time.Time      `json:"toDate"`
	HasDuplicates bool            `json:"hasDuplicates"`
	Children      []Node          `json:"children"`
}

// HierarchyBuilder groups records into the three level table.
type HierarchyBuilder struct {
	logger *slog.Logger
}

// NewHierarchyBuilder constructs a builder. A nil logger uses slog.Default.
func NewHierarchyBuilder(logger *slog.Logger) *HierarchyBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchyBuilder{logger: logger}
}

// workNode is the mutable form used while records stream through.
type workNode struct {
	id            string
	label         string
	amount        decimal.Decimal
	kind          Kind
	source        string
	from          *time.Time
	to            *time.Time
	hasDuplicates bool
	subs          *orderedMap[string, *workNode]
	children      []*workNode
}

// Build returns the top-level category nodes sorted by descending absolute
// amount. Any failure yields an empty result.
func (b *HierarchyBuilder) Build(records []RawRecord) (nodes []Node) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("build hierarchy", slog.Any("error", r), slog.Int("records", len(records)))
			nodes = []Node{}
		}
	}()

	counts := make(map[string]int, len(records))
	for _, rec := range records {
		counts[hierarchyCategory(rec)]++
	}

	categories := newOrderedMap[string, *workNode]()
	for idx, rec := range records {
		category := hierarchyCategory(rec)
		kind := DetermineKind(category, rec.Amount)

		cat := categories.GetOrCreate(category, func() *workNode {
			return &workNode{
				id:            nodeID("category", category),
				label:         category,
				kind:          kind,
				hasDuplicates: counts[category] > 1,
				subs:          newOrderedMap[string, *workNode](),
			}
		})
		cat.add(rec)

		lineItem := stringValue(rec.LineItemName)
		subcategory := stringValue(rec.Subcategory)
		if subcategory == "" {
			if lineItem == "" {
				lineItem = defaultLineItemLabel
			}
			cat.children = append(cat.children, newLeaf(rec, idx, category, "", lineItem, kind))
			continue
		}

		sub := cat.subs.GetOrCreate(subcategory, func() *workNode {
			created := &workNode{
				id:    nodeID("subcategory", category, subcategory),
				label: subcategory,
				kind:  kind,
			}
			cat.children = append(cat.children, created)
			return created
		})
		sub.add(rec)

		if (lineItem != "" && lineItem != subcategory) || rec.Depth() > 1 {
			if lineItem == "" {
				lineItem = defaultLineItemLabel
			}
			sub.children = append(sub.children, newLeaf(rec, idx, category, subcategory, lineItem, kind))
		}
	}

	nodes = make([]Node, 0, categories.Len())
	for _, cat := range categories.Values() {
		nodes = append(nodes, cat.freeze())
	}
	sortByMagnitude(nodes)
	return nodes
}

func (n *workNode) add(rec RawRecord) {
	n.amount = n.amount.Add(rec.Amount)
	n.from = earlier(n.from, rec.FromDate)
	n.to = later(n.to, rec.ToDate)
}

// freeze copies the working node into an immutable value tree. Children keep
// the order their first record arrived in.
func (n *workNode) freeze() Node {
	out := Node{
		ID:            n.id,
		Label:         n.label,
		Amount:        n.amount,
		Kind:          n.kind,
		Source:        n.source,
		FromDate:      copyTime(n.from),
		ToDate:        copyTime(n.to),
		HasDuplicates: n.hasDuplicates,
		Children:      []Node{},
	}
	for _, child := range n.children {
		out.Children = append(out.Children, child.freeze())
	}
	return out
}

func newLeaf(rec RawRecord, idx int, category, subcategory, label string, kind Kind) *workNode {
	id := rec.ID
	if id == "" {
		id = nodeID("line", category, subcategory, strconv.Itoa(idx))
	}
	return &workNode{
		id:     id,
		label:  label,
		amount: rec.Amount,
		kind:   kind,
		source: stringValue(rec.SourceName),
		from:   rec.FromDate,
		to:     rec.ToDate,
	}
}

func hierarchyCategory(rec RawRecord) string {
	if c := stringValue(rec.Category); c != "" {
		return c
	}
	return defaultHierarchyCategory
}

func nodeID(level string, parts ...string) string {
	name := level
	for _, p := range parts {
		name += "\x1f" + p
	}
	return fmt.Sprintf("%s-%s", level, uuid.NewSHA1(nodeNamespace, []byte(name)).String())
}

// sortByMagnitude orders nodes, and recursively their children, by
// descending absolute amount keeping insertion order for ties.
func sortByMagnitude(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Amount.Abs().GreaterThan(nodes[j].Amount.Abs())
	})
	for i := range nodes {
		sortByMagnitude(nodes[i].Children)
	}
}

func earlier(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.Before(*current) {
		return candidate
	}
	return current
}

func later(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		return candidate
	}
	return current
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
