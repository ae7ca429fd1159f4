package extract

// ClassifyByPosition 基于版面位置的图片分类启发式，总是先于视觉模型运行。
// 行政类图片（计分框、校徽、水印）的共同特征：相对页面很小、位于角落或页边。
func ClassifyByPosition(img Image) Classification {
	// 无位置数据时不做判断，交由视觉模型复核；视觉也失败则维持 content/low
	if img.PageWidth <= 0 || img.PageHeight <= 0 {
		return Classification{
			ImageID: img.ID,
			Class:   ClassContent,
			Conf:    ConfidenceLow,
			Reason:  "No position data available",
			Source:  SourcePosition,
		}
	}

	pageW := float64(img.PageWidth)
	pageH := float64(img.PageHeight)

	relRight := float64(img.BottomRightX) / pageW
	relBottom := float64(img.BottomRightY) / pageH
	relLeft := float64(img.TopLeftX) / pageW
	relTop := float64(img.TopLeftY) / pageH

	w := float64(img.BottomRightX - img.TopLeftX)
	h := float64(img.BottomRightY - img.TopLeftY)
	relArea := (w * h) / (pageW * pageH)

	isInBottomRight := relRight > 0.7 && relBottom > 0.8
	isInBottomLeft := relLeft < 0.3 && relBottom > 0.8
	isSmall := relArea < 0.03     // 小于页面 3%
	isVerySmall := relArea < 0.01 // 小于页面 1%

	// 极小图片：校徽、图标
	if isVerySmall {
		return Classification{
			ImageID: img.ID,
			Class:   ClassAdministrative,
			Conf:    ConfidenceHigh,
			Reason:  "Very small image (likely logo or icon)",
			Source:  SourcePosition,
		}
	}

	// 底部角落的小图：计分框
	if (isInBottomRight || isInBottomLeft) && isSmall {
		return Classification{
			ImageID: img.ID,
			Class:   ClassAdministrative,
			Conf:    ConfidenceHigh,
			Reason:  "Small image in page corner (likely score box)",
			Source:  SourcePosition,
		}
	}

	// 页面顶端的小图：页眉、水印
	if isSmall && relTop < 0.05 {
		return Classification{
			ImageID: img.ID,
			Class:   ClassAdministrative,
			Conf:    ConfidenceMedium,
			Reason:  "Small image in top margin (likely header)",
			Source:  SourcePosition,
		}
	}

	return Classification{
		ImageID: img.ID,
		Class:   ClassContent,
		Conf:    ConfidenceHigh,
		Reason:  "Normal position and size",
		Source:  SourcePosition,
	}
}
