package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

var (
	rePageUnderscore = regexp.MustCompile(`_page_(\d+)`)
	rePage           = regexp.MustCompile(`page(\d+)`)
	reNumber         = regexp.MustCompile(`(\d+)`)
)

// ImageExtensions lists the file types accepted for upload
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// BaseName returns the file name without directory and extension
func BaseName(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	if name == "" || name == "." || name == "/" {
		return "image"
	}

	return name
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	return slices.Contains(ImageExtensions, GetFileExtension(filename))
}

// PageNumber extracts a page number from a file name. It looks for
// "_page_N", then "pageN", then the first number.
func PageNumber(filename string) (int, bool) {
	name := filepath.Base(filename)

	for _, re := range []*regexp.Regexp{rePageUnderscore, rePage, reNumber} {
		if m := re.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}

	return 0, false
}

// SortByPage orders names by page number; names without one follow,
// alphabetically
func SortByPage(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		pi, iok := PageNumber(names[i])
		pj, jok := PageNumber(names[j])

		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return filepath.Base(names[i]) < filepath.Base(names[j])
		}
	})
}

// ListImageFiles recursively lists all image files in a directory, ordered
// by page number
func ListImageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}

		return nil
	})

	SortByPage(files)

	return files, err
}

// ParsePages selects pages from 1..total: "" is all pages, "2" one page,
// "1,2,3" a list, ",8" the first eight and "3," page three to the end.
// Pages outside 1..total are dropped.
func ParsePages(selection string, total int) ([]int, error) {
	selection = strings.TrimSpace(selection)

	var pages []int

	switch {
	case selection == "":
		for i := 1; i <= total; i++ {
			pages = append(pages, i)
		}

		return pages, nil

	case !strings.Contains(selection, ","):
		n, err := strconv.Atoi(selection)
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", selection)
		}

		pages = []int{n}

	default:
		var parts []int

		for _, p := range strings.Split(selection, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}

			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid page %q", p)
			}

			parts = append(parts, n)
		}

		switch {
		case len(parts) == 1 && strings.HasPrefix(selection, ","):
			for i := 1; i <= parts[0]; i++ {
				pages = append(pages, i)
			}
		case len(parts) == 1 && strings.HasSuffix(selection, ","):
			for i := parts[0]; i <= total; i++ {
				pages = append(pages, i)
			}
		default:
			pages = parts
		}
	}

	return slices.DeleteFunc(pages, func(p int) bool {
		return p < 1 || p > total
	}), nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if os.IsNotExist(err) {
		return false
	}
	return info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	result = strings.Trim(result, " .")

	if result == "" {
		return "image"
	}

	return result
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
