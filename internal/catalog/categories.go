package catalog

import (
	"strings"

	"github.com/soyeahso/rentdesk/internal/domain"
)

// messageKeywords lists, per category, normalized substrings that mark the
// category as relevant to a user message. English and Vietnamese terms are
// both written without diacritics.
var messageKeywords = map[domain.ToolCategory][]string{
	domain.CategoryAuth: {
		"login", "log in", "logout", "log out", "sign in", "sign out", "password",
		"register", "dang nhap", "dang xuat", "mat khau", "dang ky",
	},
	domain.CategoryHouse: {
		"house", "building", "property", "properties", "address",
		"nha tro", "toa nha", "can nha", "day tro", "dia chi",
	},
	domain.CategoryRoom: {
		"room", "vacant", "available", "occupied", "floor",
		"phong", "con trong", "da thue",
	},
	domain.CategoryTenant: {
		"tenant", "renter", "occupant", "resident",
		"nguoi thue", "khach thue", "nguoi o",
	},
	domain.CategoryContract: {
		"contract", "lease", "deposit", "agreement",
		"hop dong", "tien coc", "dat coc",
	},
	domain.CategoryService: {
		"service", "electric", "water", "internet", "wifi", "parking", "utility", "utilities",
		"dich vu", "tien dien", "tien nuoc", "gui xe",
	},
	domain.CategoryInvoice: {
		"invoice", "bill", "payment", "paid", "unpaid", "overdue", "revenue",
		"hoa don", "thanh toan", "cong no", "doanh thu",
	},
	domain.CategoryUser: {
		"user", "account", "profile", "staff",
		"nguoi dung", "tai khoan", "ho so", "nhan vien",
	},
}

// DefaultCategories are offered when a message names no category, so the
// model always has the commonly needed tools.
var DefaultCategories = []domain.ToolCategory{
	domain.CategoryHouse,
	domain.CategoryRoom,
	domain.CategoryTenant,
	domain.CategoryContract,
	domain.CategoryInvoice,
}

// nameRule maps tool-name fragments to a category. Rules are ordered from
// most to least specific; the first rule with a matching fragment wins.
type nameRule struct {
	category  domain.ToolCategory
	fragments []string
}

var nameRules = []nameRule{
	{domain.CategoryAuth, []string{"login", "logout", "auth", "token", "password", "register"}},
	{domain.CategoryInvoice, []string{"invoice", "bill", "payment", "revenue"}},
	{domain.CategoryService, []string{"service", "utility", "meter"}},
	{domain.CategoryContract, []string{"contract", "lease", "deposit"}},
	{domain.CategoryTenant, []string{"tenant", "renter"}},
	{domain.CategoryRoom, []string{"room"}},
	{domain.CategoryHouse, []string{"house", "building", "property"}},
	{domain.CategoryUser, []string{"user", "account", "profile"}},
}

// RelevantCategories returns the categories whose keywords occur in the
// message, in declaration order. matched is false when nothing matched and
// DefaultCategories was returned instead.
func RelevantCategories(message string) (cats []domain.ToolCategory, matched bool) {
	norm := Normalize(message)
	for _, c := range domain.AllCategories {
		for _, kw := range messageKeywords[c] {
			if strings.Contains(norm, kw) {
				cats = append(cats, c)
				break
			}
		}
	}
	if len(cats) == 0 {
		return DefaultCategories, false
	}
	return cats, true
}

// ClassifyName derives a category from a tool name alone.
func ClassifyName(name string) domain.ToolCategory {
	n := Normalize(name)
	for _, r := range nameRules {
		for _, f := range r.fragments {
			if strings.Contains(n, f) {
				return r.category
			}
		}
	}
	return domain.CategoryOther
}

// Classify returns the backend-supplied category when it is a known one,
// falling back to the tool name.
func Classify(t domain.ToolDescriptor) domain.ToolCategory {
	if t.Category != "" && t.Category.Valid() {
		return t.Category
	}
	return ClassifyName(t.Name)
}
