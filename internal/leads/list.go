package leads

import "strings"

// ListFilter narrows and pages a lead list.
type ListFilter struct {
	Status   LeadStatus
	Source   LeadSource
	Search   string
	Page     int
	PageSize int
}

// ListPage is one page of a filtered lead list.
type ListPage struct {
	Leads      []Lead `json:"leads"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

// Filter keeps leads matching every non-empty criterion, preserving order.
func Filter(list []Lead, f ListFilter) []Lead {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Lead, 0, len(list))
	for _, l := range list {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Source != "" && l.Source != f.Source {
			continue
		}
		if search != "" && !matchesSearch(l, search) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matchesSearch(l Lead, needle string) bool {
	for _, field := range []string{l.FullName(), l.Company, l.Email, l.Phone} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Paginate slices list into 1-based pages. Pages past the end are empty.
func Paginate(list []Lead, page, pageSize int) ListPage {
	if pageSize <= 0 {
		pageSize = 25
	}
	if page < 1 {
		page = 1
	}
	total := len(list)
	out := ListPage{
		Leads:      []Lead{},
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	start := (page - 1) * pageSize
	if start >= total {
		return out
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out.Leads = list[start:end]
	return out
}
