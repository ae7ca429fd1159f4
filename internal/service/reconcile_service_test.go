package service

import (
	"testing"
	"time"
)

func TestOrphanKeysSkipsReferencedObjects(t *testing.T) {
	now := time.Now()
	old := now.Add(-4 * time.Hour)
	stored := []StoredObject{
		{Key: "images/exam-1/img-0.jpeg", LastModified: old},
		{Key: "images/exam-2/img-0.jpeg", LastModified: old},
	}
	referenced := map[string]bool{"images/exam-1/img-0.jpeg": true}

	keys := orphanKeys(stored, referenced, now)
	if len(keys) != 1 || keys[0] != "images/exam-2/img-0.jpeg" {
		t.Fatalf("期望只清理未引用对象，实际 %v", keys)
	}
}

func TestOrphanKeysSkipsFreshObjects(t *testing.T) {
	// 处理中的试卷先写存储后落库，未到僵死窗口的对象不能当孤儿删
	now := time.Now()
	stored := []StoredObject{
		{Key: "pdfs/just-uploaded.pdf", LastModified: now.Add(-time.Minute)},
		{Key: "pdfs/within-window.pdf", LastModified: now.Add(-(staleProcessingMinutes - 1) * time.Minute)},
		{Key: "pdfs/past-window.pdf", LastModified: now.Add(-(staleProcessingMinutes + 1) * time.Minute)},
	}

	keys := orphanKeys(stored, map[string]bool{}, now)
	if len(keys) != 1 || keys[0] != "pdfs/past-window.pdf" {
		t.Fatalf("期望只清理超过僵死窗口的对象，实际 %v", keys)
	}
}

func TestOrphanKeysEmptyStore(t *testing.T) {
	if keys := orphanKeys(nil, map[string]bool{"pdfs/a.pdf": true}, time.Now()); len(keys) != 0 {
		t.Fatalf("空存储不应产生待删对象，实际 %v", keys)
	}
}
