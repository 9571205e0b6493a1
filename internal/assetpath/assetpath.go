// Package assetpath maps catalog-internal image references onto remote
// storage paths. The mapping is a pure function of the input string: no
// configuration reads, no state, so classification stays testable in
// isolation and identical at every call site.
package assetpath

import "strings"

// thumbnailMarker 是缩略图路径的识别子串（大小写不敏感）。
const thumbnailMarker = "thumbnails"

// Class 区分资源所属的远端目录类别。
type Class int

const (
	ClassOriginal Class = iota
	ClassThumbnail
)

// String 输出日志字段使用的类别名。
func (c Class) String() string {
	if c == ClassThumbnail {
		return "thumbnail"
	}
	return "original"
}

// Normalize 将 Windows 风格分隔符统一为 Web 形式。
// 旧版目录导入会生成形如 uploads\thumbnails\x.jpg 的记录。
func Normalize(logical string) string {
	return strings.ReplaceAll(logical, "\\", "/")
}

// Classify 判断逻辑路径指向原图还是缩略图。
func Classify(logical string) Class {
	if strings.Contains(strings.ToLower(Normalize(logical)), thumbnailMarker) {
		return ClassThumbnail
	}
	return ClassOriginal
}

// Basename 返回归一化路径的最后一段。
func Basename(logical string) string {
	normalized := Normalize(logical)
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		return normalized[idx+1:]
	}
	return normalized
}

// RemotePath 把逻辑路径映射为远端存储路径（目录前缀 + 文件名），
// 同时返回分类结果供调用方记录日志，避免在多处重复匹配规则。
func RemotePath(logical, originalFolder, thumbnailFolder string) (string, Class) {
	class := Classify(logical)
	folder := originalFolder
	if class == ClassThumbnail {
		folder = thumbnailFolder
	}
	return folder + "/" + Basename(logical), class
}
