package psalter

import "testing"

func TestBookOf(t *testing.T) {
  cases := []struct {
    name    string
    chapter int
    want    int
  }{
    {name: "first_chapter", chapter: 1, want: 1},
    {name: "last_of_book_one", chapter: 41, want: 1},
    {name: "first_of_book_two", chapter: 42, want: 2},
    {name: "middle_of_book_three", chapter: 80, want: 3},
    {name: "first_of_book_four", chapter: 90, want: 4},
    {name: "first_of_book_five", chapter: 107, want: 5},
    {name: "last_chapter", chapter: 150, want: 5},
    {name: "zero", chapter: 0, want: 0},
    {name: "out_of_range", chapter: 151, want: 0},
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      if got := BookOf(tc.chapter); got != tc.want {
        t.Fatalf("BookOf(%d)=%d, want %d", tc.chapter, got, tc.want)
      }
    })
  }
}

func TestBooksCoverAllChapters(t *testing.T) {
  books := Books()
  if len(books) != BookCount {
    t.Fatalf("got %d books, want %d", len(books), BookCount)
  }
  next := 1
  for _, b := range books {
    if b.First != next {
      t.Fatalf("book %d starts at %d, want %d", b.Number, b.First, next)
    }
    next = b.Last + 1
  }
  if next != ChapterCount+1 {
    t.Fatalf("books end at %d, want %d", next-1, ChapterCount)
  }
}

func TestChapterSetBasics(t *testing.T) {
  var s ChapterSet
  if s.Count() != 0 || s.Full() {
    t.Fatalf("zero set should be empty")
  }
  s.Set(1)
  s.Set(64)
  s.Set(65)
  s.Set(150)
  if s.Count() != 4 {
    t.Fatalf("Count()=%d, want 4", s.Count())
  }
  for _, n := range []int{1, 64, 65, 150} {
    if !s.Has(n) {
      t.Fatalf("Has(%d)=false, want true", n)
    }
  }
  if s.Has(2) || s.Has(149) {
    t.Fatalf("unexpected members present")
  }
  // out-of-range is ignored
  s.Set(0)
  s.Set(151)
  if s.Count() != 4 {
    t.Fatalf("out-of-range Set changed count: %d", s.Count())
  }
  s.Clear(64)
  if s.Has(64) || s.Count() != 3 {
    t.Fatalf("Clear(64) failed")
  }
}

func TestChapterSetFull(t *testing.T) {
  var s ChapterSet
  for n := 1; n <= ChapterCount; n++ {
    if s.Full() {
      t.Fatalf("Full() true at %d members", s.Count())
    }
    s.Set(n)
  }
  if !s.Full() {
    t.Fatalf("Full() false with all chapters set")
  }
  // setting again is idempotent
  s.Set(75)
  if s.Count() != ChapterCount {
    t.Fatalf("Count()=%d after duplicate Set", s.Count())
  }
}

func TestChapterSetRoundTrip(t *testing.T) {
  var s ChapterSet
  for _, n := range []int{3, 41, 42, 89, 90, 107, 128, 150} {
    s.Set(n)
  }
  v, err := s.Value()
  if err != nil {
    t.Fatalf("Value: %v", err)
  }
  var back ChapterSet
  if err := back.Scan(v); err != nil {
    t.Fatalf("Scan: %v", err)
  }
  if back != s {
    t.Fatalf("round trip mismatch: %v vs %v", back.Numbers(), s.Numbers())
  }
}

func TestChapterSetScanEmpty(t *testing.T) {
  var s ChapterSet
  s.Set(10)
  if err := s.Scan(nil); err != nil {
    t.Fatalf("Scan(nil): %v", err)
  }
  if s.Count() != 0 {
    t.Fatalf("Scan(nil) should reset the set")
  }
  if err := s.Scan([]byte{}); err != nil {
    t.Fatalf("Scan(empty): %v", err)
  }
  if err := s.Scan([]byte{1, 2, 3}); err == nil {
    t.Fatalf("Scan of bad length should fail")
  }
}
