package offline

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/okian/fallsense/internal/domain/model"
)

// Archive member names, as numpy.savez names them.
const (
	MemberXTrain = "X_train.npy"
	MemberYTrain = "y_train.npy"
	MemberXTest  = "X_test.npy"
	MemberYTest  = "y_test.npy"
)

// Tensors is the training dataset: one row of W*3 features per window.
type Tensors struct {
	XTrain *mat.Dense
	YTrain []int64
	XTest  *mat.Dense
	YTest  []int64
}

// NewTensors stacks windows into matrices. Either partition being empty is
// an error since no matrix can represent it.
func NewTensors(trainX []model.FeatureVector, trainY []model.Label, testX []model.FeatureVector, testY []model.Label) (Tensors, error) {
	xTrain, err := stack(trainX)
	if err != nil {
		return Tensors{}, fmt.Errorf("train: %w", err)
	}
	xTest, err := stack(testX)
	if err != nil {
		return Tensors{}, fmt.Errorf("test: %w", err)
	}
	return Tensors{
		XTrain: xTrain,
		YTrain: labels64(trainY),
		XTest:  xTest,
		YTest:  labels64(testY),
	}, nil
}

func stack(rows []model.FeatureVector) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyPartition
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrWindow, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func labels64(ls []model.Label) []int64 {
	out := make([]int64, len(ls))
	for i, l := range ls {
		out[i] = int64(l)
	}
	return out
}

// WriteTensors writes t as a Deflate-compressed npz archive at path.
func WriteTensors(path string, t Tensors) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrWrite, cerr)
		}
	}()
	return EncodeTensors(f, t)
}

// EncodeTensors writes t as an npz archive to w.
func EncodeTensors(w io.Writer, t Tensors) error {
	zw := zip.NewWriter(w)
	members := []struct {
		name string
		val  interface{}
	}{
		{MemberXTrain, t.XTrain},
		{MemberYTrain, t.YTrain},
		{MemberXTest, t.XTest},
		{MemberYTest, t.YTest},
	}
	for _, m := range members {
		mw, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWrite, m.name, err)
		}
		if err := npyio.Write(mw, m.val); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWrite, m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
