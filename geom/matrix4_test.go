package geom

import (
	"math"
	"testing"
)

func TestDecomposeMatrix(t *testing.T) {
	const eps = 0.00001

	pos := NewVector3(1, 2, 3)
	rot := NewEuler(10*math.Pi/180, 20*math.Pi/180, 30*math.Pi/180, RotationOrderZXY).ToQuaternion()
	scale := NewVector3(1.5, 1.6, 1.7)

	mat := NewTRSMatrix4(pos, rot, scale)
	pos1, rot1, scale1 := mat.Decompose()

	if pos.Sub(pos1).Len() > eps {
		t.Error("pos: ", pos, pos1)
	}
	if rot.Sub(rot1).Len() > eps {
		t.Error("rot: ", rot, rot1)
	}
	if scale.Sub(scale1).Len() > eps {
		t.Error("scale: ", scale, scale1)
	}

	mat2 := NewRotationMatrix4FromQuaternion(rot)
	pos1, rot1, scale1 = mat2.Decompose()
	if rot.Sub(rot1).Len() > eps {
		t.Error("rot: ", rot, rot1)
	}
	if pos1.Len() > eps {
		t.Error("pos: ", pos1)
	}
	if scale1.Sub(NewVector3(1, 1, 1)).Len() > eps {
		t.Error("scale: ", scale1)
	}
}

func TestMatrixMulInverse(t *testing.T) {
	const eps = 0.00001

	rot := NewEuler(0.3, -0.2, 1.1, RotationOrderXYZ).ToQuaternion()
	mat := NewTRSMatrix4(NewVector3(4, 5, 6), rot, NewVector3(2, 2, 2))
	ident := mat.Mul(mat.Inverse())
	for i, v := range NewMatrix4() {
		if Abs(ident[i]-v) > eps {
			t.Error("M * M^-1 != I: ", ident)
			break
		}
	}

	// rotation matrix and quaternion must agree
	v := NewVector3(1, 2, 3)
	if NewRotationMatrix4FromQuaternion(rot).ApplyTo(v).Sub(rot.ApplyTo(v)).Len() > eps {
		t.Error("matrix / quaternion mismatch")
	}
}
