package task

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Filter: необязательные условия выборки, объединяемые через AND.
// Границы DueDateGTE/DueDateLTE включительные.
type Filter struct {
	Status     *Status
	Priority   *Priority
	DueDate    *time.Time
	DueDateGTE *time.Time
	DueDateLTE *time.Time
	Ordering   []OrderTerm
}

type OrderField string

const (
	OrderByDueDate  OrderField = "due_date"
	OrderByPriority OrderField = "priority"
)

type OrderTerm struct {
	Field OrderField
	Desc  bool
}

func (o OrderTerm) String() string {
	if o.Desc {
		return "-" + string(o.Field)
	}
	return string(o.Field)
}

// ParseOrdering разбирает "due_date,-priority".
func ParseOrdering(raw string) ([]OrderTerm, error) {
	var terms []OrderTerm
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		term := OrderTerm{}
		if strings.HasPrefix(part, "-") {
			term.Desc = true
			part = part[1:]
		}
		switch OrderField(part) {
		case OrderByDueDate, OrderByPriority:
			term.Field = OrderField(part)
		default:
			return nil, &ValidationError{Field: "ordering", Reason: fmt.Sprintf("сортировка по %q недоступна", part)}
		}
		terms = append(terms, term)
	}
	return terms, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime принимает RFC3339, а также дату/время без зоны (UTC).
// Дробная часть секунды обрезается до TimePrecision.
// Пробел вместо '+' допускается: так он приходит из неэкранированной строки запроса.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, " "); i > 0 && strings.Contains(raw[:i], "T") && len(raw)-i-1 == len("07:00") {
		raw = raw[:i] + "+" + raw[i+1:]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Truncate(TimePrecision), nil
		}
	}
	return time.Time{}, fmt.Errorf("неверный формат времени %q", raw)
}

// ParseFilter строит фильтр из параметров запроса списка задач.
func ParseFilter(q url.Values) (Filter, error) {
	var f Filter

	if v := q.Get("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		p, err := ParsePriority(v)
		if err != nil {
			return f, err
		}
		f.Priority = &p
	}

	timeParams := []struct {
		name string
		dst  **time.Time
	}{
		{"due_date", &f.DueDate},
		{"due_date_gte", &f.DueDateGTE},
		{"due_date_lte", &f.DueDateLTE},
	}
	for _, tp := range timeParams {
		v := q.Get(tp.name)
		if v == "" {
			continue
		}
		t, err := ParseTime(v)
		if err != nil {
			return f, &ValidationError{Field: tp.name, Reason: err.Error(), Err: ErrInvalidDueDate}
		}
		*tp.dst = &t
	}

	if v := q.Get("ordering"); v != "" {
		terms, err := ParseOrdering(v)
		if err != nil {
			return f, err
		}
		f.Ordering = terms
	}
	return f, nil
}

func (f Filter) Match(t *Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.DueDate != nil && !t.DueDate.Equal(*f.DueDate) {
		return false
	}
	if f.DueDateGTE != nil && t.DueDate.Before(*f.DueDateGTE) {
		return false
	}
	if f.DueDateLTE != nil && t.DueDate.After(*f.DueDateLTE) {
		return false
	}
	return true
}

// Select выбирает задачи владельца. Сначала ограничение по владельцу,
// затем условия фильтра, затем устойчивая сортировка.
// Входной срез должен идти в порядке создания.
func Select(owner uuid.UUID, tasks []*Task, f Filter) []*Task {
	res := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if t.OwnerID != owner {
			continue
		}
		if !f.Match(t) {
			continue
		}
		res = append(res, t)
	}
	Sort(res, f.Ordering)
	return res
}

func Sort(tasks []*Task, ordering []OrderTerm) {
	if len(ordering) == 0 {
		return
	}
	slices.SortStableFunc(tasks, func(a, b *Task) int {
		for _, term := range ordering {
			var c int
			switch term.Field {
			case OrderByDueDate:
				c = a.DueDate.Compare(b.DueDate)
			case OrderByPriority:
				c = a.Priority.Rank() - b.Priority.Rank()
			}
			if term.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
