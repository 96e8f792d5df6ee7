package psalter

// The psalter is fixed: 150 chapters in five books. Boundaries follow the
// traditional division and never change at runtime.

const (
  ChapterCount = 150
  BookCount    = 5
)

// bookStart[i] is the first chapter of book i+1.
var bookStart = [BookCount]int{1, 42, 73, 90, 107}

var bookEnd = [BookCount]int{41, 72, 89, 106, ChapterCount}

type Book struct {
  Number int `json:"number"`
  First  int `json:"first"`
  Last   int `json:"last"`
}

func ValidChapter(n int) bool {
  return n >= 1 && n <= ChapterCount
}

// BookOf returns the book (1..5) containing chapter n, or 0 when n is out
// of range.
func BookOf(n int) int {
  if !ValidChapter(n) {
    return 0
  }
  for i := BookCount - 1; i >= 0; i-- {
    if n >= bookStart[i] {
      return i + 1
    }
  }
  return 0
}

func Books() []Book {
  out := make([]Book, 0, BookCount)
  for i := 0; i < BookCount; i++ {
    out = append(out, Book{Number: i + 1, First: bookStart[i], Last: bookEnd[i]})
  }
  return out
}
